package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

// TransactionModel is the row shape for the transactions table.
type TransactionModel struct {
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
	Dirty       int
	CreatedAt   string
	UpdatedAt   string
	ConfirmedAt sql.NullString
	TTL         sql.NullInt64
}

// FromEntity populates m from tx.
func (m *TransactionModel) FromEntity(tx *transaction.Transaction) {
	m.ID = tx.ID.String()
	m.UserID = tx.UserID.String()
	m.Amount = tx.Amount.Int64()
	m.Type = string(tx.Type)
	m.Date = tx.Date
	m.Merchant = tx.Merchant
	m.Category = string(tx.Category)
	m.Description = tx.Description
	m.Status = string(tx.Status)
	m.Version = tx.Version
	m.CreatedAt = tx.CreatedAt.Format(timeLayout)
	m.UpdatedAt = tx.UpdatedAt.Format(timeLayout)

	if tx.Dirty {
		m.Dirty = 1
	}

	if tx.ImageID != nil {
		m.ImageID = sql.NullString{String: tx.ImageID.String(), Valid: true}
	}

	if tx.ConfirmedAt != nil {
		m.ConfirmedAt = sql.NullString{String: tx.ConfirmedAt.Format(timeLayout), Valid: true}
	}

	if tx.TTL != nil {
		m.TTL = sql.NullInt64{Int64: *tx.TTL, Valid: true}
	}
}

// ToEntity converts m back into a *transaction.Transaction.
func (m *TransactionModel) ToEntity() (*transaction.Transaction, error) {
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

	createdAt, err := time.Parse(timeLayout, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("localstore: parse transaction created_at: %w", err)
	}

	updatedAt, err := time.Parse(timeLayout, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("localstore: parse transaction updated_at: %w", err)
	}

	tx := &transaction.Transaction{
		ID:          id,
		UserID:      userID,
		Amount:      amount,
		Type:        transaction.Type(m.Type),
		Date:        m.Date,
		Merchant:    m.Merchant,
		Category:    transaction.Category(m.Category),
		Description: m.Description,
		Status:      transaction.Status(m.Status),
		Version:     m.Version,
		Dirty:       m.Dirty != 0,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	if m.ImageID.Valid {
		imageID, err := ids.NewImageID(m.ImageID.String)
		if err == nil {
			tx.ImageID = &imageID
		}
	}

	if m.ConfirmedAt.Valid {
		t, err := time.Parse(timeLayout, m.ConfirmedAt.String)
		if err == nil {
			tx.ConfirmedAt = &t
		}
	}

	if m.TTL.Valid {
		ttl := m.TTL.Int64
		tx.TTL = &ttl
	}

	return tx, nil
}

// TransactionRepository implements sync.Repository over SQLite.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository wraps an already-opened *sql.DB.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) ListDirty(ctx context.Context, userID ids.UserID) ([]*transaction.Transaction, error) {
	query, args, err := squirrel.Select("id", "user_id", "image_id", "amount", "type", "date", "merchant",
		"category", "description", "status", "version", "dirty", "created_at", "updated_at", "confirmed_at", "ttl").
		From("transactions").
		Where(squirrel.Eq{"user_id": userID.String(), "dirty": 1}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: list dirty transactions: %w", err)
	}
	defer rows.Close()

	var out []*transaction.Transaction

	for rows.Next() {
		model, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}

		tx, err := model.ToEntity()
		if err != nil {
			return nil, err
		}

		out = append(out, tx)
	}

	return out, rows.Err()
}

func (r *TransactionRepository) Get(ctx context.Context, id ids.TransactionID) (*transaction.Transaction, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, image_id, amount, type, date, merchant,
		category, description, status, version, dirty, created_at, updated_at, confirmed_at, ttl
		FROM transactions WHERE id = ?`, id.String())

	model, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, err
	}

	tx, err := model.ToEntity()
	if err != nil {
		return nil, false, err
	}

	return tx, true, nil
}

func (r *TransactionRepository) Upsert(ctx context.Context, tx *transaction.Transaction) error {
	model := &TransactionModel{}
	model.FromEntity(tx)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, image_id, amount, type, date, merchant, category, description,
			status, version, dirty, created_at, updated_at, confirmed_at, ttl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id, image_id=excluded.image_id, amount=excluded.amount,
			type=excluded.type, date=excluded.date, merchant=excluded.merchant, category=excluded.category,
			description=excluded.description, status=excluded.status, version=excluded.version, dirty=excluded.dirty,
			updated_at=excluded.updated_at, confirmed_at=excluded.confirmed_at, ttl=excluded.ttl`,
		model.ID, model.UserID, model.ImageID, model.Amount, model.Type, model.Date, model.Merchant, model.Category,
		model.Description, model.Status, model.Version, model.Dirty, model.CreatedAt, model.UpdatedAt, model.ConfirmedAt, model.TTL,
	)
	if err != nil {
		return fmt.Errorf("localstore: upsert transaction %s: %w", tx.ID, err)
	}

	return nil
}

func (r *TransactionRepository) ClearDirty(ctx context.Context, id ids.TransactionID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET dirty = 0 WHERE id = ?`, id.String())
	return err
}

func (r *TransactionRepository) MarkDirty(ctx context.Context, id ids.TransactionID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET dirty = 1 WHERE id = ?`, id.String())
	return err
}

func scanTransactionRow(row rowScanner) (*TransactionModel, error) {
	m := &TransactionModel{}

	err := row.Scan(&m.ID, &m.UserID, &m.ImageID, &m.Amount, &m.Type, &m.Date, &m.Merchant, &m.Category,
		&m.Description, &m.Status, &m.Version, &m.Dirty, &m.CreatedAt, &m.UpdatedAt, &m.ConfirmedAt, &m.TTL)
	if err != nil {
		return nil, err
	}

	return m, nil
}
