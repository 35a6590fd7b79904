package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	gwmongo "github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	gwpermit "github.com/yorutsuke/yorutsuke/components/gateway/internal/permit"
	"github.com/yorutsuke/yorutsuke/components/gateway/internal/quota"
	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/msecrets"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeRandom struct{}

func (fakeRandom) UUID() string { return "00000000-0000-0000-0000-000000000000" }

type fakeSecretStore struct{ material msecrets.KeyMaterial }

func (f fakeSecretStore) FetchKeyMaterial(context.Context) (msecrets.KeyMaterial, error) {
	return f.material, nil
}

func newTestKeySet() fakeSecretStore {
	return fakeSecretStore{material: msecrets.KeyMaterial{
		ActiveVersion: "1",
		Keys:          map[string]string{"1": "test-secret-v1"},
	}}
}

type fakeObjectStore struct {
	puts    map[string][]byte
	objects map[string][]byte
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{puts: map[string][]byte{}, objects: map[string][]byte{}}
}

func (f *fakeObjectStore) PresignPut(_ context.Context, key string, _ time.Duration, _ map[string]string) (string, error) {
	return "https://example.test/" + key, nil
}

func (f *fakeObjectStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (f *fakeObjectStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.puts[key] = data

	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, mzerrors.EntityNotFoundError{EntityType: "object", Message: "missing: " + key}
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)

	return nil
}

func (f *fakeObjectStore) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string

	for key := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

type fakeTransactionStore struct {
	rows map[ids.TransactionID]*transaction.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{rows: map[ids.TransactionID]*transaction.Transaction{}}
}

func (f *fakeTransactionStore) CreateIfAbsent(_ context.Context, tx *transaction.Transaction) (bool, error) {
	if _, exists := f.rows[tx.ID]; exists {
		return false, nil
	}

	copied := *tx
	f.rows[tx.ID] = &copied

	return true, nil
}

func (f *fakeTransactionStore) UpdateWithVersionCheck(_ context.Context, tx *transaction.Transaction) (bool, *transaction.Transaction, error) {
	current, ok := f.rows[tx.ID]
	if !ok {
		return false, nil, mzerrors.EntityNotFoundError{EntityType: "transaction"}
	}

	if tx.Version != current.Version+1 {
		serverRow := *current
		return false, &serverRow, nil
	}

	copied := *tx
	f.rows[tx.ID] = &copied

	return true, nil, nil
}

func (f *fakeTransactionStore) ListSince(_ context.Context, userID ids.UserID, cursor string, limit int) ([]transaction.Transaction, string, error) {
	var out []transaction.Transaction

	for id, row := range f.rows {
		if row.UserID != userID {
			continue
		}

		if cursor != "" && string(id) <= cursor {
			continue
		}

		out = append(out, *row)
	}

	next := cursor
	if len(out) > 0 {
		next = out[len(out)-1].ID.String()
	}

	return out, next, nil
}

func (f *fakeTransactionStore) DeleteAllForUser(_ context.Context, userID ids.UserID) (int64, error) {
	var n int64

	for id, row := range f.rows {
		if row.UserID == userID {
			delete(f.rows, id)
			n++
		}
	}

	return n, nil
}

func (f *fakeTransactionStore) EarliestGuestTTL(_ context.Context, userID ids.UserID) (*int64, error) {
	var earliest *int64

	for _, row := range f.rows {
		if row.UserID != userID || row.TTL == nil {
			continue
		}

		if earliest == nil || *row.TTL < *earliest {
			v := *row.TTL
			earliest = &v
		}
	}

	return earliest, nil
}

type fakeJobStatusStore struct {
	jobs map[ids.JobID]gwmongo.BatchJob
}

func (f *fakeJobStatusStore) FindByJobID(_ context.Context, jobID ids.JobID) (gwmongo.BatchJob, bool, error) {
	job, ok := f.jobs[jobID]
	return job, ok, nil
}

type fakeOrchestrator struct {
	resp ports.BatchSubmitResponse
	err  error
}

func (f *fakeOrchestrator) Submit(context.Context, ports.BatchSubmitRequest) (ports.BatchSubmitResponse, error) {
	return f.resp, f.err
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	server := miniredis.RunT(t)

	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func newTestHandler(t *testing.T) (*Handler, *fakeObjectStore, *fakeTransactionStore) {
	t.Helper()

	objects := newFakeObjectStore()
	txStore := newFakeTransactionStore()
	redisClient := newTestRedis(t)

	h := &Handler{
		Objects:       objects,
		Permits:       &gwpermit.Issuer{Secrets: newTestKeySet(), Clock: fixedClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}},
		LegacyQuota:   &quota.LegacyCounter{Client: redisClient},
		EmergencyStop: &quota.EmergencyStop{Client: redisClient},
		Transactions:  txStore,
		BatchJobs:     &fakeJobStatusStore{jobs: map[ids.JobID]gwmongo.BatchJob{}},
		Orchestrator:  &fakeOrchestrator{},
		Clock:         fixedClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		Random:        fakeRandom{},
	}

	return h, objects, txStore
}

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, h)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	rec.Code = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	rec.Body = bytes.NewBuffer(respBody)

	return rec
}

func newRawGet(t *testing.T, path string) *http.Request {
	t.Helper()

	return httptest.NewRequest(fiber.MethodGet, path, nil)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func newCtx() context.Context { return context.Background() }

func mustUserID(t *testing.T, s string) ids.UserID {
	t.Helper()

	userID, err := ids.NewUserID(s)
	require.NoError(t, err)

	return userID
}
