package uploadqueue

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/components/client/internal/quota"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

type fakeRepo struct {
	mu     sync.Mutex
	images map[ids.ImageID]*Image
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{images: make(map[ids.ImageID]*Image)}
}

func (f *fakeRepo) Create(_ context.Context, img *Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *img
	f.images[img.ID] = &cp

	return nil
}

func (f *fakeRepo) Update(_ context.Context, img *Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *img
	f.images[img.ID] = &cp

	return nil
}

func (f *fakeRepo) Get(_ context.Context, id ids.ImageID) (*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.images[id], nil
}

func (f *fakeRepo) FindByMD5(_ context.Context, userID ids.UserID, md5 [16]byte) (*Image, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Earliest match first, as the sqlite repository orders by created_at.
	var first *Image

	for _, img := range f.images {
		if img.UserID == userID && img.HasMD5 && img.MD5 == md5 {
			if first == nil || img.CreatedAt.Before(first.CreatedAt) {
				first = img
			}
		}
	}

	return first, first != nil, nil
}

func (f *fakeRepo) ListByStatus(_ context.Context, status ImageStatus) ([]*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Image

	for _, img := range f.images {
		if img.Status == status {
			out = append(out, img)
		}
	}

	return out, nil
}

func (f *fakeRepo) ListAll(_ context.Context) ([]*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Image

	for _, img := range f.images {
		out = append(out, img)
	}

	return out, nil
}

func (f *fakeRepo) Delete(_ context.Context, id ids.ImageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.images, id)

	return nil
}

type fakeBlobStore struct {
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Write(path string, data []byte) error {
	f.blobs[path] = data
	return nil
}

func (f *fakeBlobStore) Read(path string) ([]byte, error) {
	return f.blobs[path], nil
}

func (f *fakeBlobStore) Delete(path string) error {
	delete(f.blobs, path)
	return nil
}

func (f *fakeBlobStore) Exists(path string) bool {
	_, ok := f.blobs[path]
	return ok
}

type fakePresign struct {
	resp ports.PresignResponse
	err  error
}

func (f *fakePresign) Presign(context.Context, ports.PresignRequest) (ports.PresignResponse, error) {
	return f.resp, f.err
}

type fakeHTTPClient struct {
	status int
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type mutableClock struct{ now time.Time }

func (c *mutableClock) Now() time.Time { return c.now }

func newTestWorker(t *testing.T, repo *fakeRepo, blobs *fakeBlobStore, presign *fakePresign, checker QuotaChecker) *Worker {
	t.Helper()

	return &Worker{
		Queue:      New(repo, blobs, nil, &mlog.NoneLogger{}),
		Repo:       repo,
		Blobs:      blobs,
		Compressor: nil,
		Presign:    presign,
		Quota:      checker,
		HTTP:       &fakeHTTPClient{status: http.StatusOK},
		Clock:      fixedClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		Logger:     &mlog.NoneLogger{},
	}
}

func newTestImage(t *testing.T, status ImageStatus) *Image {
	t.Helper()

	userID, err := ids.NewUserID("user-1")
	require.NoError(t, err)

	imgID, err := ids.NewImageID("img-1")
	require.NoError(t, err)

	traceID, err := ids.NewTraceID("trace-1")
	require.NoError(t, err)

	return &Image{
		ID: imgID, UserID: userID, TraceID: traceID, Status: status,
		LocalPath: "img-1.webp", OriginalSize: 1024, CreatedAt: time.Now().UTC(),
	}
}

func TestCompressOneSkipsSmallBlobs(t *testing.T) {
	repo := newFakeRepo()
	blobs := newFakeBlobStore()

	img := newTestImage(t, StatusPending)
	img.OriginalSize = 100
	blobs.blobs[img.LocalPath] = make([]byte, 100)
	require.NoError(t, repo.Create(context.Background(), img))

	w := newTestWorker(t, repo, blobs, &fakePresign{}, nil)
	require.NoError(t, w.compressOne(context.Background()))

	assert.Equal(t, StatusCompressed, repo.images[img.ID].Status)
	assert.True(t, repo.images[img.ID].HasMD5)
}

func TestUploadOneHappyPath(t *testing.T) {
	repo := newFakeRepo()
	blobs := newFakeBlobStore()

	img := newTestImage(t, StatusCompressed)
	img.HasMD5 = true
	blobs.blobs[img.LocalPath] = []byte("compressed-bytes")
	require.NoError(t, repo.Create(context.Background(), img))

	presign := &fakePresign{resp: ports.PresignResponse{URL: "https://example.test/put", Key: "uploads/user-1/1-img-1.webp", TraceID: img.TraceID}}
	w := newTestWorker(t, repo, blobs, presign, nil)

	require.NoError(t, w.uploadOne(context.Background()))

	got := repo.images[img.ID]
	assert.Equal(t, StatusUploaded, got.Status)
	assert.Equal(t, "uploads/user-1/1-img-1.webp", got.ObjectKey)
	require.NotNil(t, got.UploadedAt)
}

func TestUploadOneSkipsDuplicateMD5(t *testing.T) {
	repo := newFakeRepo()
	blobs := newFakeBlobStore()

	existing := newTestImage(t, StatusUploaded)
	existing.HasMD5 = true
	existing.MD5 = [16]byte{1, 2, 3}
	require.NoError(t, repo.Create(context.Background(), existing))

	dup := newTestImage(t, StatusCompressed)
	dup.ID, _ = ids.NewImageID("img-2")
	dup.HasMD5 = true
	dup.MD5 = [16]byte{1, 2, 3}
	require.NoError(t, repo.Create(context.Background(), dup))

	w := newTestWorker(t, repo, blobs, &fakePresign{}, nil)
	require.NoError(t, w.uploadOne(context.Background()))

	assert.Equal(t, StatusSkipped, repo.images[dup.ID].Status)
}

func TestUploadOneGatesRetryOnNextRetryAt(t *testing.T) {
	repo := newFakeRepo()
	blobs := newFakeBlobStore()

	img := newTestImage(t, StatusCompressed)
	img.HasMD5 = true
	blobs.blobs[img.LocalPath] = []byte("compressed-bytes")
	require.NoError(t, repo.Create(context.Background(), img))

	presign := &fakePresign{resp: ports.PresignResponse{URL: "https://example.test/put", Key: "uploads/user-1/1-img-1.webp", TraceID: img.TraceID}}
	w := newTestWorker(t, repo, blobs, presign, nil)

	clock := &mutableClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	w.Clock = clock
	w.HTTP = &fakeHTTPClient{status: http.StatusInternalServerError}

	require.NoError(t, w.uploadOne(context.Background()))

	got := repo.images[img.ID]
	assert.Equal(t, StatusCompressed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, clock.now.Add(RetryDelays[0]), *got.NextRetryAt)

	// Polling again before the delay elapses must not re-pick the image:
	// spec.md §8 requires the exact {1000, 2000, 4000}ms cadence, not
	// "whenever the next tick happens to land".
	require.NoError(t, w.uploadOne(context.Background()))
	assert.Equal(t, 1, repo.images[img.ID].RetryCount)
	assert.Equal(t, StatusCompressed, repo.images[img.ID].Status)

	// Once the delay elapses, the worker re-attempts and (still failing)
	// advances to the next backoff tier.
	clock.now = clock.now.Add(RetryDelays[0])
	require.NoError(t, w.uploadOne(context.Background()))

	got = repo.images[img.ID]
	assert.Equal(t, StatusCompressed, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, clock.now.Add(RetryDelays[1]), *got.NextRetryAt)
}

type blockingQuota struct{}

func (blockingQuota) CheckCanUpload(context.Context, ids.UserID) (quota.Decision, error) {
	return quota.Decision{Allowed: false, Reason: quota.ReasonTotalLimitReached}, nil
}

func (blockingQuota) IncrementUsage(context.Context, ids.UserID) error { return nil }

func TestUploadOneRespectsQuotaDenial(t *testing.T) {
	repo := newFakeRepo()
	blobs := newFakeBlobStore()

	img := newTestImage(t, StatusCompressed)
	require.NoError(t, repo.Create(context.Background(), img))

	w := newTestWorker(t, repo, blobs, &fakePresign{}, blockingQuota{})
	require.NoError(t, w.uploadOne(context.Background()))

	assert.Equal(t, StatusFailed, repo.images[img.ID].Status)
}
