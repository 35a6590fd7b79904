// Package objectkey centralizes the S3 key layout spec.md §6.1 fixes, so
// every producer/consumer of an object (gateway presign, instant
// processor, batch orchestrator, batch worker) agrees on the same shape.
package objectkey

import (
	"fmt"
	"strings"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

// Upload returns the pre-OCR object key for a freshly presigned upload.
func Upload(userID ids.UserID, imageID ids.ImageID) string {
	return fmt.Sprintf("uploads/%s/%s", userID, imageID)
}

// UploadWithName returns the literal presign-time key (spec.md §4.3):
// uploads/{userId}/{unixMillis}-{fileName}. ImageID is exactly this key's
// final path segment, so Upload and UploadWithName agree once the caller
// has parsed {unixMillis}-{fileName} back into an ImageID.
func UploadWithName(userID ids.UserID, unixMillis int64, fileName string) string {
	return fmt.Sprintf("uploads/%s/%d-%s", userID, unixMillis, fileName)
}

// ParseUpload recovers (userID, imageID) from an "uploads/{userId}/{imageId}"
// key — the instant processor's only way to learn whose image it is, since
// the triggering event carries nothing but the key.
func ParseUpload(key string) (ids.UserID, ids.ImageID, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != "uploads" {
		return "", "", fmt.Errorf("objectkey: %q is not an uploads/ key", key)
	}

	userID, err := ids.NewUserID(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("objectkey: parse user id from %q: %w", key, err)
	}

	imageID, err := ids.NewImageID(parts[2])
	if err != nil {
		return "", "", fmt.Errorf("objectkey: parse image id from %q: %w", key, err)
	}

	return userID, imageID, nil
}

// Processed returns the post-OCR, JST-dated resting place for an object.
func Processed(jstDate string, userID ids.UserID, imageID ids.ImageID) string {
	return fmt.Sprintf("processed/%s/%s/%s", jstDate, userID, imageID)
}

// Manifest returns the orchestrator's manifest key for a given submission
// instant, in unix milliseconds.
func Manifest(unixMillis int64) string {
	return fmt.Sprintf("batch-input/manifest-%d.jsonl", unixMillis)
}

// BatchOutput returns the vendor's result key for a given job.
func BatchOutput(jobID ids.JobID) string {
	return fmt.Sprintf("batch-output/%s/output.jsonl", jobID)
}

// ParseBatchOutput recovers the JobID from a "batch-output/{jobId}/
// output.jsonl" key — the batch worker's only way to learn which job
// finished, since the triggering event carries nothing but the key.
func ParseBatchOutput(key string) (ids.JobID, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != "batch-output" || parts[2] != "output.jsonl" {
		return "", fmt.Errorf("objectkey: %q is not a batch-output/ key", key)
	}

	return ids.NewJobID(parts[1])
}

// DeadLetter returns the dead-letter key for a migration failure recorded
// at the given instant, in unix milliseconds.
func DeadLetter(jobID ids.JobID, unixMillis int64) string {
	return fmt.Sprintf("dead-letters/%s/%d.json", jobID, unixMillis)
}
