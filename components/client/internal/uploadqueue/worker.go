package uploadqueue

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/yorutsuke/yorutsuke/components/client/internal/quota"
	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// QuotaChecker is the local-first permission gate spec.md §4.3 requires the
// worker to consult before ever attempting a network presign — checking
// the cached permit avoids a network round-trip only to be told no.
type QuotaChecker interface {
	CheckCanUpload(ctx context.Context, userID ids.UserID) (quota.Decision, error)
	IncrementUsage(ctx context.Context, userID ids.UserID) error
}

// pollInterval is how often the worker looks for new work when idle.
const pollInterval = 500 * time.Millisecond

// presignTTL is the presigned PUT URL's lifetime (spec.md §4.1 step 5).
const presignTTL = 30 * time.Minute

// uploadTimeout is the client-side deadline for a single PUT (spec.md §4.1
// step 5 / §5's "60s from PUT dispatch").
const uploadTimeout = 60 * time.Second

// Worker is the single long-lived task selecting between "new compressed
// image", "pause signal", "resume signal", "shutdown" (spec.md §9's
// coroutine note), implemented as one mlauncher.App.
type Worker struct {
	Queue      *Queue
	Repo       Repository
	Blobs      BlobStore
	Compressor Compressor
	Presign    ports.PresignGate
	Quota      QuotaChecker
	HTTP       ports.HTTPClient
	Clock      ports.Clock
	Random     ports.Random
	Logger     mlog.Logger

	shutdown chan struct{}
}

// Run implements mlauncher.App: it loops until Shutdown is called,
// compressing pending images and uploading compressed ones.
func (w *Worker) Run(l *mlauncher.Launcher) error {
	w.shutdown = make(chan struct{})

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case <-w.shutdown:
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// Shutdown stops the worker loop.
func (w *Worker) Shutdown() {
	if w.shutdown != nil {
		close(w.shutdown)
	}
}

func (w *Worker) tick(ctx context.Context) {
	if err := w.compressOne(ctx); err != nil {
		w.Logger.Warnf("uploadqueue: compress step: %v", err)
	}

	if w.Queue.IsPaused() {
		return
	}

	if err := w.uploadOne(ctx); err != nil {
		w.Logger.Warnf("uploadqueue: upload step: %v", err)
	}
}

// compressOne picks the oldest pending image and runs the compression
// rule from spec.md §4.1: skip if <=100KiB, else re-encode via the
// injected Compressor.
func (w *Worker) compressOne(ctx context.Context) error {
	pending, err := w.Repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return err
	}

	img := oldestByCreatedAt(pending)
	if img == nil {
		return nil
	}

	blob, err := w.Blobs.Read(img.LocalPath)
	if err != nil {
		_ = img.MarkFailed("missing_local_blob")
		return w.Repo.Update(ctx, img)
	}

	var compressed []byte

	if img.OriginalSize <= compressionSkipThreshold {
		compressed = blob
	} else {
		compressed, err = w.Compressor.Compress(blob)
		if err != nil {
			_ = img.MarkFailed("compression_error")
			return w.Repo.Update(ctx, img)
		}
	}

	if err := w.Blobs.Write(img.LocalPath, compressed); err != nil {
		return err
	}

	img.CompressedSize = len(compressed)
	md5sum := hashMD5(compressed)
	img.MD5 = md5sum
	img.HasMD5 = true

	if err := img.Transition(StatusCompressed); err != nil {
		return err
	}

	return w.Repo.Update(ctx, img)
}

// uploadOne picks the oldest compressed image, performs the dedup check,
// obtains a presigned URL, and PUTs the blob — spec.md §4.1 steps 1-7.
func (w *Worker) uploadOne(ctx context.Context) error {
	compressed, err := w.Repo.ListByStatus(ctx, StatusCompressed)
	if err != nil {
		return err
	}

	img := oldestByCreatedAt(dueForUpload(compressed, w.Clock.Now()))
	if img == nil {
		return nil
	}

	if img.HasMD5 {
		dup, found, err := w.Repo.FindByMD5(ctx, img.UserID, img.MD5)
		if err != nil {
			return err
		}

		if found && dup.ID != img.ID && isUploadedOrBeyond(dup.Status) {
			if err := img.Transition(StatusSkipped); err != nil {
				return err
			}

			return w.Repo.Update(ctx, img)
		}
	}

	intentID, err := ids.NewIntentID("intent-" + img.ID.String())
	if err != nil {
		return err
	}

	if w.Quota != nil {
		decision, err := w.Quota.CheckCanUpload(ctx, img.UserID)
		if err != nil {
			return err
		}

		if !decision.Allowed {
			return w.handleUploadFailure(ctx, img, mzerrors.New(mzerrors.KindQuota, string(decision.Reason)))
		}
	}

	blob, err := w.Blobs.Read(img.LocalPath)
	if err != nil {
		_ = img.MarkFailed("missing_local_blob")
		return w.Repo.Update(ctx, img)
	}

	resp, err := w.Presign.Presign(ctx, ports.PresignRequest{
		UserID:      img.UserID,
		FileName:    img.ID.String(),
		ContentType: "image/webp",
		TraceID:     img.TraceID,
	})
	if err != nil {
		return w.handleUploadFailure(ctx, img, err)
	}

	_ = intentID // derived but not sent: PresignRequest has no intent field, so the gateway never sees it

	if err := img.Transition(StatusUploading); err != nil {
		return err
	}

	if err := w.Repo.Update(ctx, img); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, resp.URL, bytes.NewReader(blob))
	if err != nil {
		return w.handleUploadFailure(ctx, img, err)
	}

	req.Header.Set("Content-Type", "image/webp")
	req.Header.Set("X-Trace-Id", img.TraceID.String())

	httpResp, err := w.HTTP.Do(req)
	if err != nil {
		return w.handleUploadFailure(ctx, img, mzerrors.Wrap(mzerrors.KindNetwork, err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return w.handleUploadFailure(ctx, img, classifyHTTPStatus(httpResp.StatusCode))
	}

	if err := img.MarkUploaded(resp.Key, w.Clock.Now()); err != nil {
		return err
	}

	if w.Quota != nil {
		if err := w.Quota.IncrementUsage(ctx, img.UserID); err != nil {
			w.Logger.Warnf("uploadqueue: increment usage for %s: %v", img.UserID, err)
		}
	}

	return w.Repo.Update(ctx, img)
}

// classifyHTTPStatus maps an HTTP status to the closed error taxonomy,
// per spec.md §4.1 step 7.
func classifyHTTPStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		return mzerrors.New(mzerrors.KindQuota, "presign rejected: quota exceeded")
	case status >= 500:
		return mzerrors.New(mzerrors.KindServer, "upload server error")
	default:
		return mzerrors.New(mzerrors.KindUnknown, "unexpected upload response")
	}
}

// handleUploadFailure classifies the error and applies spec.md §4.1 step 7's
// retry/fail decision.
func (w *Worker) handleUploadFailure(ctx context.Context, img *Image, err error) error {
	kind := mzerrors.KindOf(err)

	if kind == mzerrors.KindQuota {
		w.Queue.Pause(PauseQuota)
	}

	switch kind {
	case mzerrors.KindQuota, mzerrors.KindUnknown:
		_ = img.MarkFailed(err.Error())
		return w.Repo.Update(ctx, img)
	case mzerrors.KindNetwork, mzerrors.KindServer:
		if img.RetryCount < MaxRetryCount {
			delay := RetryDelays[img.RetryCount]
			img.RetryCount++

			// Back to compressed for the next attempt, the same demotion
			// RestartRecovery applies; the FSM table has no uploading ->
			// compressed edge, so Transition is not used here.
			img.Status = StatusCompressed

			nextRetryAt := w.Clock.Now().Add(delay)
			img.NextRetryAt = &nextRetryAt

			return w.Repo.Update(ctx, img)
		}

		_ = img.MarkFailed(err.Error())

		return w.Repo.Update(ctx, img)
	default:
		_ = img.MarkFailed(err.Error())
		return w.Repo.Update(ctx, img)
	}
}

// dueForUpload filters out images still serving their retry backoff, so
// uploadOne never re-picks a retried image before its NextRetryAt elapses
// — the exact {1000, 2000, 4000}ms cadence from spec.md §8.
func dueForUpload(images []*Image, now time.Time) []*Image {
	due := make([]*Image, 0, len(images))

	for _, img := range images {
		if img.NextRetryAt != nil && now.Before(*img.NextRetryAt) {
			continue
		}

		due = append(due, img)
	}

	return due
}

func oldestByCreatedAt(images []*Image) *Image {
	if len(images) == 0 {
		return nil
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].CreatedAt.Before(images[j].CreatedAt)
	})

	return images[0]
}

func isUploadedOrBeyond(status ImageStatus) bool {
	switch status {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusConfirmed:
		return true
	default:
		return false
	}
}
