package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

func newTestTransaction(t *testing.T, version int) *transaction.Transaction {
	t.Helper()

	id, err := ids.NewTransactionID("tx-abc123")
	require.NoError(t, err)

	userID, err := ids.NewUserID("device-abc")
	require.NoError(t, err)

	amount, err := money.New(1250)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	return &transaction.Transaction{
		ID: id, UserID: userID, Amount: amount, Type: transaction.TypeExpense, Date: "2026-01-01",
		Merchant: "Cafe", Category: transaction.CategoryFood, Status: transaction.StatusConfirmed,
		Version: version, CreatedAt: now, UpdatedAt: now,
	}
}

// TestUpdateWithVersionCheckAcceptsExactSuccessor mirrors the rebase
// walkthrough: local row carries version 5 (one past the server's stored
// version 4, after a rebase) and the write must be accepted.
func TestUpdateWithVersionCheckAcceptsExactSuccessor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newTransactionRepositoryForDB(db)

	tx := newTestTransaction(t, 5)

	mock.ExpectExec(`UPDATE transactions SET`).
		WithArgs(tx.Amount.Int64(), string(tx.Type), tx.Date, tx.Merchant, string(tx.Category),
			tx.Description, string(tx.Status), tx.Version, tx.UpdatedAt, nil, tx.ID.String(), tx.Version-1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	accepted, serverRow, err := repo.UpdateWithVersionCheck(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Nil(t, serverRow)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateWithVersionCheckRejectsStaleVersion mirrors spec.md §8 scenario
// 6 exactly: local version 3 against server version 4 is rejected, and the
// server's current row (version 4) is returned as the conflict payload.
func TestUpdateWithVersionCheckRejectsStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newTransactionRepositoryForDB(db)

	tx := newTestTransaction(t, 3)

	mock.ExpectExec(`UPDATE transactions SET`).
		WithArgs(tx.Amount.Int64(), string(tx.Type), tx.Date, tx.Merchant, string(tx.Category),
			tx.Description, string(tx.Status), tx.Version, tx.UpdatedAt, nil, tx.ID.String(), tx.Version-1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	serverRow := newTestTransaction(t, 4)
	columns := []string{"id", "user_id", "image_id", "amount", "type", "date", "merchant", "category",
		"description", "status", "version", "created_at", "updated_at", "confirmed_at", "ttl"}
	rows := sqlmock.NewRows(columns).
		AddRow(serverRow.ID.String(), serverRow.UserID.String(), nil, serverRow.Amount.Int64(), string(serverRow.Type),
			serverRow.Date, serverRow.Merchant, string(serverRow.Category), serverRow.Description,
			string(serverRow.Status), serverRow.Version, serverRow.CreatedAt, serverRow.UpdatedAt, nil, nil)
	mock.ExpectQuery(`SELECT id, user_id, image_id`).WithArgs(tx.ID.String()).WillReturnRows(rows)

	accepted, current, err := repo.UpdateWithVersionCheck(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, accepted)
	require.NotNil(t, current)
	assert.Equal(t, 4, current.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfAbsentReportsWhetherItWon(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newTransactionRepositoryForDB(db)
	tx := newTestTransaction(t, 1)

	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.CreateIfAbsent(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, inserted)

	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = repo.CreateIfAbsent(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsNotFoundWithoutError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newTransactionRepositoryForDB(db)

	id, err := ids.NewTransactionID("tx-missing")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, user_id, image_id`).WithArgs(id.String()).WillReturnError(sql.ErrNoRows)

	_, found, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetPropagatesUnexpectedScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newTransactionRepositoryForDB(db)

	id, err := ids.NewTransactionID("tx-broken")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, user_id, image_id`).WithArgs(id.String()).WillReturnError(assert.AnError)

	_, found, err := repo.Get(context.Background(), id)
	require.Error(t, err)
	assert.False(t, found)
}
