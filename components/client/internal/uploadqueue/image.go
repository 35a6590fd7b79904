// Package uploadqueue implements the Receipt upload queue from spec.md
// §4.1: a worker loop transporting a captured blob through a monotone FSM
// into cloud storage, with dedup, quota, backpressure, retry, and
// crash-recovery.
package uploadqueue

import (
	"fmt"
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

// ImageStatus is the Receipt image's closed FSM state set (spec.md §4.1).
type ImageStatus string

const (
	StatusPending    ImageStatus = "pending"
	StatusCompressed ImageStatus = "compressed"
	StatusUploading  ImageStatus = "uploading"
	StatusUploaded   ImageStatus = "uploaded"
	StatusProcessing ImageStatus = "processing"
	StatusProcessed  ImageStatus = "processed"
	StatusConfirmed  ImageStatus = "confirmed"
	StatusFailed     ImageStatus = "failed"
	StatusSkipped    ImageStatus = "skipped"
)

// MaxRetryCount bounds how many times a failed image may be retried
// (spec.md §4.1: "failed is retriable to pending only while retryCount <
// MAX_RETRY_COUNT (=3)").
const MaxRetryCount = 3

// RetryDelays are the exact, ordered backoff delays for upload retries
// (spec.md §4.1 step 7 / §8's boundary behaviour).
var RetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// allowedTransitions enumerates every legal FSM edge; anything absent is
// forbidden (spec.md §4.1: "Transitions not listed are forbidden.").
var allowedTransitions = map[ImageStatus][]ImageStatus{
	StatusPending:    {StatusCompressed, StatusFailed},
	StatusCompressed: {StatusUploading, StatusSkipped, StatusFailed},
	StatusUploading:  {StatusUploaded, StatusFailed},
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusProcessed:  {StatusConfirmed},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether from -> to is a legal FSM edge.
func CanTransition(from, to ImageStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// IsTerminal reports whether status is a terminal state (spec.md §4.1:
// "Terminal states: confirmed, skipped.").
func IsTerminal(status ImageStatus) bool {
	return status == StatusConfirmed || status == StatusSkipped
}

// Image is the Receipt image record from spec.md §3.2.
type Image struct {
	ID             ids.ImageID
	UserID         ids.UserID
	TraceID        ids.TraceID
	Status         ImageStatus
	LocalPath      string
	ObjectKey      string
	MD5            [16]byte
	HasMD5         bool
	OriginalSize   int
	CompressedSize int
	CreatedAt      time.Time
	UploadedAt     *time.Time
	ProcessedAt    *time.Time
	Error          string
	RetryCount     int
	NextRetryAt    *time.Time
}

// Transition moves img from its current status to to, validating the edge
// only. It does not set objectKey or uploadedAt; MarkUploaded is the path
// that keeps spec.md §3.2(a) (uploaded implies both are set).
func (img *Image) Transition(to ImageStatus) error {
	if !CanTransition(img.Status, to) {
		return fmt.Errorf("uploadqueue: illegal transition %s -> %s for image %s", img.Status, to, img.ID)
	}

	img.Status = to

	return nil
}

// MarkUploaded records the uploaded state plus its required fields in one
// step so the (a) invariant can never be violated by a partial update.
func (img *Image) MarkUploaded(objectKey string, uploadedAt time.Time) error {
	if err := img.Transition(StatusUploaded); err != nil {
		return err
	}

	img.ObjectKey = objectKey
	img.UploadedAt = &uploadedAt

	return nil
}

// MarkFailed transitions img to failed and records the cause.
func (img *Image) MarkFailed(cause string) error {
	if img.Status == StatusFailed {
		img.Error = cause
		return nil
	}

	if err := img.Transition(StatusFailed); err != nil {
		return err
	}

	img.Error = cause

	return nil
}

// PrepareRetry resets img from failed to pending, clearing the error — the
// retryImage()/retryAllFailed() operation (spec.md §4.1).
func (img *Image) PrepareRetry() error {
	if err := img.Transition(StatusPending); err != nil {
		return err
	}

	img.RetryCount = 0
	img.Error = ""
	img.NextRetryAt = nil

	return nil
}
