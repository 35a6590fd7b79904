// Package mpostgres is the primary/replica Postgres connection hub used by
// the gateway's Transaction store, adapted from the teacher's
// common/mpostgres package. Squirrel queries below should use
// sqrl.PlaceholderFormat(sqrl.Dollar) per the teacher's convention.
package mpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Connection is a hub for primary/replica Postgres access plus migrations.
type Connection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	PrimaryDBName           string
	MigrationsPath          string
	Logger                  mlog.Logger

	ConnectionDB *dbresolver.DB
	Connected    bool
}

// Connect opens the primary and replica pools, runs migrations against the
// primary, and pings the resolver. Safe to call once; GetDB lazily invokes
// it for callers that never call Connect directly.
func (c *Connection) Connect() error {
	logger := c.logger()
	logger.Info("mpostgres: connecting to primary and replica databases")

	dbPrimary, err := sql.Open("pgx", c.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("mpostgres: open primary: %w", err)
	}

	dbReplica, err := sql.Open("pgx", c.ConnectionStringReplica)
	if err != nil {
		return fmt.Errorf("mpostgres: open replica: %w", err)
	}

	connectionDB := dbresolver.New(
		dbresolver.WithPrimaryDBs(dbPrimary),
		dbresolver.WithReplicaDBs(dbReplica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB))

	if c.MigrationsPath != "" {
		if err := c.migrate(dbPrimary); err != nil {
			return err
		}
	}

	if err := connectionDB.Ping(); err != nil {
		return fmt.Errorf("mpostgres: ping: %w", err)
	}

	c.Connected = true
	c.ConnectionDB = &connectionDB

	logger.Info("mpostgres: connected")

	return nil
}

func (c *Connection) migrate(dbPrimary *sql.DB) error {
	migrationsPath, err := filepath.Abs(c.MigrationsPath)
	if err != nil {
		return fmt.Errorf("mpostgres: resolve migrations path: %w", err)
	}

	primaryURL, err := url.Parse(filepath.ToSlash(migrationsPath))
	if err != nil {
		return fmt.Errorf("mpostgres: parse migrations url: %w", err)
	}

	primaryURL.Scheme = "file"

	driver, err := postgres.WithInstance(dbPrimary, &postgres.Config{
		MultiStatementEnabled: true,
		DatabaseName:          c.PrimaryDBName,
		SchemaName:            "public",
	})
	if err != nil {
		return fmt.Errorf("mpostgres: migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(primaryURL.String(), c.PrimaryDBName, driver)
	if err != nil {
		return fmt.Errorf("mpostgres: load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("mpostgres: run migrations: %w", err)
	}

	return nil
}

// GetDB returns the resolver, connecting lazily on first use.
func (c *Connection) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if c.ConnectionDB == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return *c.ConnectionDB, nil
}

func (c *Connection) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return &mlog.NoneLogger{}
}
