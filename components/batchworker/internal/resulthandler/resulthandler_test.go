package resulthandler

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeObjectStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) PresignPut(context.Context, string, time.Duration, map[string]string) (string, error) {
	return "", nil
}

func (f *fakeObjectStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (f *fakeObjectStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.objects[key] = data

	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, assert.AnError
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)

	return nil
}

func (f *fakeObjectStore) ListByPrefix(context.Context, string) ([]string, error) { return nil, nil }

type fakeJobStore struct {
	jobs     map[string]mongo.BatchJob
	terminal map[string]mongo.Status
}

func newFakeJobStore(job mongo.BatchJob) *fakeJobStore {
	return &fakeJobStore{
		jobs:     map[string]mongo.BatchJob{job.JobID.String(): job},
		terminal: map[string]mongo.Status{},
	}
}

func (f *fakeJobStore) FindByJobID(_ context.Context, jobID ids.JobID) (mongo.BatchJob, bool, error) {
	job, ok := f.jobs[jobID.String()]
	return job, ok, nil
}

func (f *fakeJobStore) MarkTerminal(_ context.Context, jobID ids.JobID, status mongo.Status) error {
	f.terminal[jobID.String()] = status
	return nil
}

type fakeTransactionStore struct {
	rows map[string]*transaction.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{rows: map[string]*transaction.Transaction{}}
}

func (f *fakeTransactionStore) CreateIfAbsent(_ context.Context, tx *transaction.Transaction) (bool, error) {
	if _, exists := f.rows[tx.ID.String()]; exists {
		return false, nil
	}

	f.rows[tx.ID.String()] = tx

	return true, nil
}

func mustUserID(t *testing.T, s string) ids.UserID {
	t.Helper()

	userID, err := ids.NewUserID(s)
	require.NoError(t, err)

	return userID
}

func mustJobID(t *testing.T, s string) ids.JobID {
	t.Helper()

	jobID, err := ids.NewJobID(s)
	require.NoError(t, err)

	return jobID
}

func TestHandleOutputWritesTransactionsAndMigratesObjects(t *testing.T) {
	jobID := mustJobID(t, "job-1")
	userID := mustUserID(t, "user-1")
	submitTime := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	job := mongo.BatchJob{JobID: jobID, UserID: userID, Status: mongo.StatusSubmitted, SubmitTime: submitTime}

	objects := newFakeObjectStore()
	objects.objects[objectkey.Upload(userID, "img-1")] = []byte("receipt bytes")
	objects.objects[objectkey.BatchOutput(jobID)] = []byte(
		`{"customData":"img-1","output":{"text":"{\"amount\":1500,\"type\":\"expense\",\"date\":\"2026-01-30\",\"merchant\":\"Lawson\",\"category\":\"groceries\",\"description\":\"lunch\"}"}}` + "\n",
	)

	jobs := newFakeJobStore(job)
	transactions := newFakeTransactionStore()

	h := &Handler{Objects: objects, Jobs: jobs, Transactions: transactions, Clock: fixedClock{now: time.Date(2026, 1, 31, 1, 0, 0, 0, time.UTC)}}

	require.NoError(t, h.HandleOutput(context.Background(), objectkey.BatchOutput(jobID)))

	require.Len(t, transactions.rows, 1)

	var row *transaction.Transaction
	for _, r := range transactions.rows {
		row = r
	}

	assert.Equal(t, transaction.StatusUnconfirmed, row.Status)
	assert.Equal(t, "Lawson", row.Merchant)
	assert.Equal(t, DeriveTransactionID(jobID, "img-1", submitTime), row.ID)

	_, stillAtSource := objects.objects[objectkey.Upload(userID, "img-1")]
	assert.False(t, stillAtSource)

	destKey := objectkey.Processed("2026-01-31", userID, "img-1")
	_, movedOut := objects.objects[destKey]
	assert.True(t, movedOut)

	assert.Equal(t, mongo.StatusCompleted, jobs.terminal[jobID.String()])
}

func TestHandleOutputRejectsMalformedLinesWithoutFailingTheBatch(t *testing.T) {
	jobID := mustJobID(t, "job-2")
	userID := mustUserID(t, "user-1")
	job := mongo.BatchJob{JobID: jobID, UserID: userID, Status: mongo.StatusSubmitted, SubmitTime: time.Now()}

	objects := newFakeObjectStore()
	objects.objects[objectkey.BatchOutput(jobID)] = []byte("{\"missing\":\"fields\"}\n" + `{"customData":"","output":{"text":""}}` + "\n")

	jobs := newFakeJobStore(job)
	transactions := newFakeTransactionStore()

	h := &Handler{Objects: objects, Jobs: jobs, Transactions: transactions, Clock: fixedClock{now: time.Now()}}

	require.NoError(t, h.HandleOutput(context.Background(), objectkey.BatchOutput(jobID)))
	assert.Empty(t, transactions.rows)
	assert.Equal(t, mongo.StatusCompleted, jobs.terminal[jobID.String()])
}

func TestHandleOutputDeadLettersOnMigrationFailure(t *testing.T) {
	jobID := mustJobID(t, "job-3")
	userID := mustUserID(t, "user-1")
	submitTime := time.Now()
	job := mongo.BatchJob{JobID: jobID, UserID: userID, Status: mongo.StatusSubmitted, SubmitTime: submitTime}

	objects := newFakeObjectStore()
	// Source object is absent, so migration will fail after the
	// transaction write succeeds.
	objects.objects[objectkey.BatchOutput(jobID)] = []byte(
		`{"customData":"img-missing","output":{"text":"{\"amount\":100,\"type\":\"expense\",\"date\":\"2026-01-30\",\"merchant\":\"Lawson\",\"category\":\"groceries\",\"description\":\"lunch\"}"}}` + "\n",
	)

	jobs := newFakeJobStore(job)
	transactions := newFakeTransactionStore()

	h := &Handler{Objects: objects, Jobs: jobs, Transactions: transactions, Clock: fixedClock{now: time.Now()}}

	require.NoError(t, h.HandleOutput(context.Background(), objectkey.BatchOutput(jobID)))
	assert.Len(t, transactions.rows, 1)

	foundDeadLetter := false
	for key := range objects.objects {
		if len(key) >= len("dead-letters/") && key[:len("dead-letters/")] == "dead-letters/" {
			foundDeadLetter = true
		}
	}
	assert.True(t, foundDeadLetter)
}

func TestReplayDeadLetterRecomputesTheSameTransaction(t *testing.T) {
	jobID := mustJobID(t, "job-4")
	userID := mustUserID(t, "user-1")
	submitTime := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	envelope := DeadLetterEnvelope{
		JobID: jobID, UserID: userID, ImageID: "img-9",
		OutputText: `{"amount":900,"type":"expense","date":"2026-01-30","merchant":"Lawson","category":"groceries","description":"lunch"}`,
		SubmitTime: submitTime,
	}

	tx, err := ReplayDeadLetter(envelope)
	require.NoError(t, err)
	assert.Equal(t, DeriveTransactionID(jobID, "img-9", submitTime), tx.ID)
	assert.Equal(t, transaction.StatusUnconfirmed, tx.Status)
}
