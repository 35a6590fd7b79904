// Package postgres is the gateway's authoritative Transaction store
// (spec.md §3.4), backed by internal/platform/mpostgres's primary/replica
// hub and driven with Masterminds/squirrel exactly as the teacher's
// ledger repositories drive Postgres.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/mpostgres"
)

// sqrl is the squirrel statement builder bound to Postgres's placeholder
// format, per the teacher's convention.
var sqrl = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// sqlExecutor is the narrow slice of dbresolver.DB (and plain *sql.DB) this
// repository needs, kept separate so tests can swap in a sqlmock-backed
// *sql.DB without going through a live connection hub.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TransactionRepository is the Postgres-backed implementation of the
// gateway's authoritative transaction store.
type TransactionRepository struct {
	getDB func(ctx context.Context) (sqlExecutor, error)
}

// NewTransactionRepository binds a repository to an already-configured
// connection hub.
func NewTransactionRepository(connection *mpostgres.Connection) *TransactionRepository {
	return &TransactionRepository{
		getDB: func(ctx context.Context) (sqlExecutor, error) {
			return connection.GetDB(ctx)
		},
	}
}

// newTransactionRepositoryForDB binds a repository directly to a
// sqlExecutor, bypassing the connection hub — used by tests with sqlmock.
func newTransactionRepositoryForDB(db sqlExecutor) *TransactionRepository {
	return &TransactionRepository{getDB: func(context.Context) (sqlExecutor, error) { return db, nil }}
}

// transactionModel is the row shape, with FromEntity/ToEntity exactly like
// the teacher's *PostgreSQLModel pattern.
type transactionModel struct {
	ID          string
	UserID      string
	ImageID     sql.NullString
	Amount      int64
	Type        string
	Date        string
	Merchant    string
	Category    string
	Description string
	Status      string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt sql.NullTime
	TTL         sql.NullInt64
}

func modelFromEntity(tx *transaction.Transaction) *transactionModel {
	m := &transactionModel{
		ID: tx.ID.String(), UserID: tx.UserID.String(), Amount: tx.Amount.Int64(),
		Type: string(tx.Type), Date: tx.Date, Merchant: tx.Merchant, Category: string(tx.Category),
		Description: tx.Description, Status: string(tx.Status), Version: tx.Version,
		CreatedAt: tx.CreatedAt, UpdatedAt: tx.UpdatedAt,
	}

	if tx.ImageID != nil {
		m.ImageID = sql.NullString{String: tx.ImageID.String(), Valid: true}
	}

	if tx.ConfirmedAt != nil {
		m.ConfirmedAt = sql.NullTime{Time: *tx.ConfirmedAt, Valid: true}
	}

	if tx.TTL != nil {
		m.TTL = sql.NullInt64{Int64: *tx.TTL, Valid: true}
	}

	return m
}

func (m *transactionModel) toEntity() (*transaction.Transaction, error) {
	id, err := ids.NewTransactionID(m.ID)
	if err != nil {
		return nil, err
	}

	userID, err := ids.NewUserID(m.UserID)
	if err != nil {
		return nil, err
	}

	amount, err := money.New(m.Amount)
	if err != nil {
		return nil, err
	}

	tx := &transaction.Transaction{
		ID: id, UserID: userID, Amount: amount, Type: transaction.Type(m.Type), Date: m.Date,
		Merchant: m.Merchant, Category: transaction.Category(m.Category), Description: m.Description,
		Status: transaction.Status(m.Status), Version: m.Version, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}

	if m.ImageID.Valid {
		imageID, err := ids.NewImageID(m.ImageID.String)
		if err == nil {
			tx.ImageID = &imageID
		}
	}

	if m.ConfirmedAt.Valid {
		confirmedAt := m.ConfirmedAt.Time
		tx.ConfirmedAt = &confirmedAt
	}

	if m.TTL.Valid {
		ttl := m.TTL.Int64
		tx.TTL = &ttl
	}

	return tx, nil
}

// CreateIfAbsent conditionally inserts tx, emulating
// attribute_not_exists(id) (spec.md §4.5.1 step 4 / §4.5.3 step 4). It
// reports whether this call performed the insert (false means some
// earlier caller already won the race — not itself an error).
func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: get db: %w", err)
	}

	m := modelFromEntity(tx)

	query, args, err := sqrl.Insert("transactions").
		Columns("id", "user_id", "image_id", "amount", "type", "date", "merchant", "category", "description",
			"status", "version", "created_at", "updated_at", "confirmed_at", "ttl").
		Values(m.ID, m.UserID, m.ImageID, m.Amount, m.Type, m.Date, m.Merchant, m.Category, m.Description,
			m.Status, m.Version, m.CreatedAt, m.UpdatedAt, m.ConfirmedAt, m.TTL).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return false, mzerrors.EntityConflictError{EntityType: "transaction", Message: pgErr.Message, Err: err}
		}

		return false, fmt.Errorf("postgres: insert transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// Get fetches a transaction by id.
func (r *TransactionRepository) Get(ctx context.Context, id ids.TransactionID) (*transaction.Transaction, bool, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get db: %w", err)
	}

	m := &transactionModel{}

	row := db.QueryRowContext(ctx, `SELECT id, user_id, image_id, amount, type, date, merchant, category,
		description, status, version, created_at, updated_at, confirmed_at, ttl
		FROM transactions WHERE id = $1`, id.String())

	err = row.Scan(&m.ID, &m.UserID, &m.ImageID, &m.Amount, &m.Type, &m.Date, &m.Merchant, &m.Category,
		&m.Description, &m.Status, &m.Version, &m.CreatedAt, &m.UpdatedAt, &m.ConfirmedAt, &m.TTL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("postgres: scan transaction: %w", err)
	}

	tx, err := m.toEntity()
	if err != nil {
		return nil, false, err
	}

	return tx, true, nil
}

// UpdateWithVersionCheck implements spec.md §3.4's optimistic-concurrency
// invariant: the write is accepted only if tx.Version is exactly one past
// the server's currently stored version (the client having bumped its
// local copy by exactly 1 per edit, per §4.6). On rejection it returns the
// server's current row so the caller can report the conflict payload.
func (r *TransactionRepository) UpdateWithVersionCheck(ctx context.Context, tx *transaction.Transaction) (accepted bool, serverRow *transaction.Transaction, err error) {
	db, dbErr := r.getDB(ctx)
	if dbErr != nil {
		return false, nil, fmt.Errorf("postgres: get db: %w", dbErr)
	}

	m := modelFromEntity(tx)

	query, args, buildErr := sqrl.Update("transactions").
		Set("amount", m.Amount).
		Set("type", m.Type).
		Set("date", m.Date).
		Set("merchant", m.Merchant).
		Set("category", m.Category).
		Set("description", m.Description).
		Set("status", m.Status).
		Set("version", m.Version).
		Set("updated_at", m.UpdatedAt).
		Set("confirmed_at", m.ConfirmedAt).
		Where(squirrel.Eq{"id": m.ID, "version": m.Version - 1}).
		ToSql()
	if buildErr != nil {
		return false, nil, buildErr
	}

	result, execErr := db.ExecContext(ctx, query, args...)
	if execErr != nil {
		return false, nil, fmt.Errorf("postgres: update transaction %s: %w", tx.ID, execErr)
	}

	rows, raErr := result.RowsAffected()
	if raErr != nil {
		return false, nil, raErr
	}

	if rows > 0 {
		return true, nil, nil
	}

	current, found, getErr := r.Get(ctx, tx.ID)
	if getErr != nil {
		return false, nil, getErr
	}

	if !found {
		return false, nil, mzerrors.EntityNotFoundError{EntityType: "transaction", Message: fmt.Sprintf("transaction %s not found", tx.ID)}
	}

	return false, current, nil
}

// ListSince implements the cursor-based pull endpoint: rows for userID
// with id > cursor, ordered by id, capped at a page size.
func (r *TransactionRepository) ListSince(ctx context.Context, userID ids.UserID, cursor string, limit int) ([]transaction.Transaction, string, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("postgres: get db: %w", err)
	}

	builder := sqrl.Select("id", "user_id", "image_id", "amount", "type", "date", "merchant", "category",
		"description", "status", "version", "created_at", "updated_at", "confirmed_at", "ttl").
		From("transactions").
		Where(squirrel.Eq{"user_id": userID.String()}).
		OrderBy("id ASC").
		Limit(uint64(limit))

	if cursor != "" {
		builder = builder.Where(squirrel.Gt{"id": cursor})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, "", err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("postgres: list transactions since %q: %w", cursor, err)
	}
	defer rows.Close()

	var (
		out        []transaction.Transaction
		nextCursor string
	)

	for rows.Next() {
		m := &transactionModel{}

		if err := rows.Scan(&m.ID, &m.UserID, &m.ImageID, &m.Amount, &m.Type, &m.Date, &m.Merchant, &m.Category,
			&m.Description, &m.Status, &m.Version, &m.CreatedAt, &m.UpdatedAt, &m.ConfirmedAt, &m.TTL); err != nil {
			return nil, "", err
		}

		tx, err := m.toEntity()
		if err != nil {
			return nil, "", err
		}

		out = append(out, *tx)
		nextCursor = m.ID
	}

	return out, nextCursor, rows.Err()
}

// EarliestGuestTTL returns the soonest-expiring ttl among userID's guest
// rows, used to compute the /quota endpoint's guest data-expiry fields
// (SPEC_FULL.md §4.3's supplemented computation from ttl - now).
func (r *TransactionRepository) EarliestGuestTTL(ctx context.Context, userID ids.UserID) (*int64, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: get db: %w", err)
	}

	var ttl sql.NullInt64

	row := db.QueryRowContext(ctx,
		`SELECT MIN(ttl) FROM transactions WHERE user_id = $1 AND ttl IS NOT NULL`, userID.String())
	if err := row.Scan(&ttl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("postgres: earliest guest ttl for %s: %w", userID, err)
	}

	if !ttl.Valid {
		return nil, nil
	}

	v := ttl.Int64

	return &v, nil
}

// DeleteAllForUser removes every transaction row for userID (spec.md
// §6.2's /admin/delete-data). Returns the number of rows removed.
func (r *TransactionRepository) DeleteAllForUser(ctx context.Context, userID ids.UserID) (int64, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: get db: %w", err)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID.String())
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transactions for %s: %w", userID, err)
	}

	return result.RowsAffected()
}
