// Package mmongo is the MongoDB connection hub backing the gateway's OCR
// batch job store (spec.md §4.5.2's idempotent job-record insert), adapted
// from the teacher's common/mmongo package.
package mmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Connection is a hub which deals with MongoDB connections.
type Connection struct {
	ConnectionStringSource string
	Database               string
	Logger                 mlog.Logger

	DB        *mongo.Client
	Connected bool
}

// Connect opens a singleton connection to MongoDB.
func (c *Connection) Connect(ctx context.Context) error {
	logger := c.logger()
	logger.Info("mmongo: connecting")

	clientOptions := options.Client().ApplyURI(c.ConnectionStringSource)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("mmongo: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mmongo: ping: %w", err)
	}

	logger.Info("mmongo: connected")

	c.Connected = true
	c.DB = client

	return nil
}

// GetDB returns the mongo client, connecting lazily on first use.
func (c *Connection) GetDB(ctx context.Context) (*mongo.Client, error) {
	if c.DB == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.DB, nil
}

// GetDatabase returns the configured Database handle, connecting lazily.
func (c *Connection) GetDatabase(ctx context.Context) (*mongo.Database, error) {
	client, err := c.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	return client.Database(c.Database), nil
}

func (c *Connection) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return &mlog.NoneLogger{}
}
