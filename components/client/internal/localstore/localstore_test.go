package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/components/client/internal/sync"
	"github.com/yorutsuke/yorutsuke/components/client/internal/uploadqueue"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/mkv"
)

func openTestDB(t *testing.T) *ImageRepository {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewImageRepository(db)
}

func TestImageRepositoryCreateGetUpdate(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	userID, err := ids.NewUserID("user-1")
	require.NoError(t, err)

	imageID, err := ids.NewImageID("1234-receipt.jpg")
	require.NoError(t, err)

	traceID, err := ids.NewTraceID("trace-1")
	require.NoError(t, err)

	img := &uploadqueue.Image{
		ID:        imageID,
		UserID:    userID,
		TraceID:   traceID,
		Status:    uploadqueue.StatusPending,
		LocalPath: "user-1/1234-receipt.jpg",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.Create(ctx, img))

	fetched, err := repo.Get(ctx, imageID)
	require.NoError(t, err)
	assert.Equal(t, uploadqueue.StatusPending, fetched.Status)

	fetched.MD5 = [16]byte{1, 2, 3}
	fetched.HasMD5 = true
	require.NoError(t, fetched.Transition(uploadqueue.StatusCompressed))
	require.NoError(t, repo.Update(ctx, fetched))

	byStatus, err := repo.ListByStatus(ctx, uploadqueue.StatusCompressed)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, imageID, byStatus[0].ID)

	dup, found, err := repo.FindByMD5(ctx, userID, [16]byte{1, 2, 3})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, imageID, dup.ID)
}

func TestImageRepositoryDelete(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	userID, _ := ids.NewUserID("user-1")
	imageID, _ := ids.NewImageID("img-1")
	traceID, _ := ids.NewTraceID("trace-1")

	img := &uploadqueue.Image{ID: imageID, UserID: userID, TraceID: traceID, Status: uploadqueue.StatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, img))
	require.NoError(t, repo.Delete(ctx, imageID))

	_, err := repo.Get(ctx, imageID)
	require.Error(t, err)
}

func TestTransactionRepositoryUpsertAndListDirty(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	userID, _ := ids.NewUserID("user-1")
	txID, _ := ids.NewTransactionID("tx-1")
	amount, _ := money.New(1000)

	now := time.Now().UTC()
	tx := &transaction.Transaction{
		ID: txID, UserID: userID, Amount: amount, Type: transaction.TypeExpense,
		Date: "2026-07-31", Status: transaction.StatusUnconfirmed, Version: 1, Dirty: true,
		CreatedAt: now, UpdatedAt: now,
	}

	require.NoError(t, repo.Upsert(ctx, tx))

	dirty, err := repo.ListDirty(ctx, userID)
	require.NoError(t, err)
	require.Len(t, dirty, 1)

	require.NoError(t, repo.ClearDirty(ctx, txID))

	dirty, err = repo.ListDirty(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	require.NoError(t, repo.MarkDirty(ctx, txID))
	dirty, err = repo.ListDirty(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, dirty, 1)
}

func TestOfflineQueueRepositoryDedupesByID(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewOfflineQueueRepository(db)
	ctx := context.Background()

	txID, _ := ids.NewTransactionID("tx-1")
	amount, _ := money.New(500)

	action := sync.SyncAction{
		ID: "tx-1", Type: sync.ActionPush, TransactionID: txID, Timestamp: time.Now().UTC(),
		Payload: transaction.Transaction{ID: txID, Amount: amount},
	}

	require.NoError(t, repo.Enqueue(ctx, action))
	require.NoError(t, repo.Enqueue(ctx, action))

	actions, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	require.NoError(t, repo.Remove(ctx, "tx-1"))
	actions, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestPermitCacheLoadSave(t *testing.T) {
	dir := t.TempDir()

	kv, err := mkv.Open(dir, permitBucket)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	cache := NewPermitCache(kv)
	ctx := context.Background()

	userID, _ := ids.NewUserID("device-abc")

	_, err = cache.Load(ctx, userID)
	require.Error(t, err)

	stored := permit.StoredPermit{
		Permit:    permit.Permit{UserID: userID, TotalLimit: 50, DailyRate: 5},
		TotalUsed: 3,
	}

	require.NoError(t, cache.Save(ctx, userID, stored))

	loaded, err := cache.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.TotalUsed)
	assert.Equal(t, 50, loaded.Permit.TotalLimit)
}
