package uploadqueue

import (
	"context"
	"crypto/md5" //nolint:gosec // content-addressing, not cryptographic use
	"fmt"
	"sync"
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Status is the queue-wide (not per-image) processing state. It is a
// distinct field from any Image.Status — the "observed-bug contract" in
// spec.md §4.1 requires that a unit completing its own transition never
// clobbers this global field.
type Status string

const (
	StatusQueueProcessing Status = "processing"
	StatusQueuePaused     Status = "paused"
)

// PauseReason is the closed set of reasons a queue may be paused.
type PauseReason string

const (
	PauseOffline PauseReason = "offline"
	PauseQuota   PauseReason = "quota"
)

// Repository is the local persistence capability for Image rows, backed
// by localstore's sqlite+squirrel adapter.
type Repository interface {
	Create(ctx context.Context, img *Image) error
	Update(ctx context.Context, img *Image) error
	Get(ctx context.Context, id ids.ImageID) (*Image, error)
	FindByMD5(ctx context.Context, userID ids.UserID, md5 [16]byte) (*Image, bool, error)
	ListByStatus(ctx context.Context, status ImageStatus) ([]*Image, error)
	ListAll(ctx context.Context) ([]*Image, error)
	Delete(ctx context.Context, id ids.ImageID) error
}

// BlobStore is the local-filesystem capability for the captured/compressed
// blob bytes (spec.md's "raw image codec/resizing implementations" are out
// of scope; this interface only persists and retrieves bytes at a path).
type BlobStore interface {
	Write(path string, data []byte) error
	Read(path string) ([]byte, error)
	Delete(path string) error
	Exists(path string) bool
}

// Compressor performs the named external "compress(blob) -> webpBlob"
// primitive spec.md's Out-of-scope section names explicitly.
type Compressor interface {
	Compress(blob []byte) ([]byte, error)
}

// compressionSkipThreshold is the size below which compression is
// skipped outright (spec.md §4.1's compression rule / §8's boundary
// behaviour: "Compression skipped for inputs <=102400 bytes").
const compressionSkipThreshold = 100 * 1024

// Stats is the QueueStats() read-model: a supplemented feature (not in
// spec.md's distillation) giving a UI queue badge the counts it needs
// without re-deriving them from a full image scan on every render.
type Stats struct {
	CountsByStatus map[ImageStatus]int
	BytesUploaded  int64
	LastError      string
}

// Queue owns the queue-wide status and coordinates the worker loop.
type Queue struct {
	mu     sync.Mutex
	status Status
	reason PauseReason

	repo       Repository
	blobs      BlobStore
	compressor Compressor
	logger     mlog.Logger

	stats Stats
}

// New builds a Queue in the processing state.
func New(repo Repository, blobs BlobStore, compressor Compressor, logger mlog.Logger) *Queue {
	return &Queue{
		status:     StatusQueueProcessing,
		repo:       repo,
		blobs:      blobs,
		compressor: compressor,
		logger:     logger,
		stats:      Stats{CountsByStatus: make(map[ImageStatus]int)},
	}
}

// Status returns the current queue-wide status and, if paused, the reason.
func (q *Queue) Status() (Status, PauseReason) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.status, q.reason
}

// Pause sets the queue-wide status to paused. It never touches any
// in-flight per-image transition (spec.md §4.1: "does not interrupt
// in-flight uploads").
func (q *Queue) Pause(reason PauseReason) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.status = StatusQueuePaused
	q.reason = reason
}

// Resume sets the queue-wide status back to processing.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.status = StatusQueueProcessing
	q.reason = ""
}

// IsPaused reports whether the queue is currently paused.
func (q *Queue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.status == StatusQueuePaused
}

// Enqueue persists blob locally and creates a row in pending. It does not
// hash the blob; MD5 is left unset here.
// Quota is checked by the caller (components/client/internal/quota)
// before Enqueue is invoked, per spec.md §4.1's stated precondition.
func (q *Queue) Enqueue(ctx context.Context, userID ids.UserID, traceID ids.TraceID, blob []byte, originalName string) (ids.ImageID, error) {
	now := time.Now().UTC()

	imageID, err := ids.NewImageID(fmt.Sprintf("%d-%s", now.UnixMilli(), originalName))
	if err != nil {
		return "", err
	}

	localPath := fmt.Sprintf("%s/%s", userID.String(), imageID.String())
	if err := q.blobs.Write(localPath, blob); err != nil {
		return "", fmt.Errorf("uploadqueue: write blob: %w", err)
	}

	img := &Image{
		ID:           imageID,
		UserID:       userID,
		TraceID:      traceID,
		Status:       StatusPending,
		LocalPath:    localPath,
		OriginalSize: len(blob),
		CreatedAt:    now,
	}

	if err := q.repo.Create(ctx, img); err != nil {
		return "", fmt.Errorf("uploadqueue: create image row: %w", err)
	}

	return imageID, nil
}

// RetryImage resets a single failed image to pending (spec.md §4.1's
// retryImage()).
func (q *Queue) RetryImage(ctx context.Context, id ids.ImageID) error {
	img, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := img.PrepareRetry(); err != nil {
		return err
	}

	return q.repo.Update(ctx, img)
}

// RetryAllFailed resets every failed image to pending and returns how many
// were reset. It is not subscribed to the network monitor; a reconnect
// edge does not call it.
func (q *Queue) RetryAllFailed(ctx context.Context) (int, error) {
	failed, err := q.repo.ListByStatus(ctx, StatusFailed)
	if err != nil {
		return 0, err
	}

	retried := 0

	for _, img := range failed {
		if err := img.PrepareRetry(); err != nil {
			continue
		}

		if err := q.repo.Update(ctx, img); err != nil {
			return retried, err
		}

		retried++
	}

	return retried, nil
}

// RemoveImage purges the local blob and row for a non-terminal image
// (spec.md §4.1's removeImage()).
func (q *Queue) RemoveImage(ctx context.Context, id ids.ImageID) error {
	img, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if IsTerminal(img.Status) {
		return fmt.Errorf("uploadqueue: cannot remove image %s in terminal state %s", id, img.Status)
	}

	if err := q.blobs.Delete(img.LocalPath); err != nil {
		q.logger.Warnf("uploadqueue: delete blob for %s: %v", id, err)
	}

	return q.repo.Delete(ctx, id)
}

// RestartRecovery runs the crash-recovery pass from spec.md §4.1: demote
// any row stuck in uploading back to compressed, and mark rows whose blob
// has vanished externally as failed.
func (q *Queue) RestartRecovery(ctx context.Context) error {
	all, err := q.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, img := range all {
		switch img.Status {
		case StatusUploading:
			img.Status = StatusCompressed

			if err := q.repo.Update(ctx, img); err != nil {
				return err
			}
		case StatusPending, StatusCompressed, StatusUploaded:
			if !q.blobs.Exists(img.LocalPath) && img.Status != StatusUploaded {
				_ = img.MarkFailed("missing_local_blob")

				if err := q.repo.Update(ctx, img); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// QueueStats computes the supplemented QueueStats() read-model.
func (q *Queue) QueueStats(ctx context.Context) (Stats, error) {
	all, err := q.repo.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{CountsByStatus: make(map[ImageStatus]int)}

	for _, img := range all {
		stats.CountsByStatus[img.Status]++

		if img.Status == StatusUploaded || img.Status == StatusProcessed || img.Status == StatusConfirmed {
			stats.BytesUploaded += int64(img.CompressedSize)
		}

		if img.Error != "" {
			stats.LastError = img.Error
		}
	}

	return stats, nil
}

// hashMD5 computes the content hash used for dedup (spec.md §3.2(b)).
func hashMD5(blob []byte) [16]byte {
	return md5.Sum(blob) //nolint:gosec
}
