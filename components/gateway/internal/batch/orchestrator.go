// Package batch implements the OCR batch orchestrator (spec.md §4.5.2):
// idempotency pre-check, barrier insert, manifest generation, and vendor
// submission, backed by the gateway's MongoDB jobs table and S3-shaped
// object store.
package batch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	"github.com/yorutsuke/yorutsuke/internal/core/airlock"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// maxManifestRecords caps a single job's manifest per spec.md §4.5.2 step
// 3 ("Cap at 1000 records per job to bound Lambda runtime").
const maxManifestRecords = 1000

// costPerImageUSDCents and durationPerImage are the supplemented cost/time
// estimate spec.md names in the /batch/submit response shape (§6.2) but
// leaves uncomputed; this is a simple linear heuristic, not a vendor quote.
const (
	costPerImageUSDCents = 2
	durationPerImageMS   = 450
)

// JobStore is the subset of the jobs table the orchestrator needs,
// satisfied by components/gateway/internal/mongo.BatchJobRepository.
type JobStore interface {
	FindByIntentID(ctx context.Context, intentID ids.IntentID) (mongo.BatchJob, bool, error)
	InsertBarrier(ctx context.Context, job mongo.BatchJob) error
	MarkSubmitted(ctx context.Context, intentID ids.IntentID, jobID ids.JobID, manifestURI string, now time.Time) error
}

// VendorSubmitter is the capability for creating a batch inference job
// with the vision-model vendor (Bedrock Runtime in production).
type VendorSubmitter interface {
	SubmitJob(ctx context.Context, manifestURI, modelID string, imageCount int) (ids.JobID, error)
}

// Orchestrator implements ports.BatchOrchestrator.
type Orchestrator struct {
	Jobs    JobStore
	Objects ports.ObjectStore
	Vendor  VendorSubmitter
	Clock   ports.Clock
	Random  ports.Random
	Logger  mlog.Logger
}

func (o *Orchestrator) logger() mlog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return &mlog.NoneLogger{}
}

// Submit runs spec.md §4.5.2's five steps.
func (o *Orchestrator) Submit(ctx context.Context, req ports.BatchSubmitRequest) (ports.BatchSubmitResponse, error) {
	if existing, found, err := o.Jobs.FindByIntentID(ctx, req.IntentID); err != nil {
		return ports.BatchSubmitResponse{}, err
	} else if found {
		return cachedResponse(existing), nil
	}

	now := o.Clock.Now()

	barrier := mongo.BatchJob{
		IntentID: req.IntentID, UserID: req.UserID, Status: mongo.StatusProcessing,
		SubmitTime: now, PendingImageCount: len(req.PendingImageIDs), ModelID: req.ModelID,
	}
	if err := o.Jobs.InsertBarrier(ctx, barrier); err != nil {
		return ports.BatchSubmitResponse{}, err
	}

	imageIDs := req.PendingImageIDs
	if len(imageIDs) > maxManifestRecords {
		o.logger().Warn(fmt.Sprintf("batch: capping manifest for intent %s at %d of %d pending images",
			req.IntentID, maxManifestRecords, len(imageIDs)))
		imageIDs = imageIDs[:maxManifestRecords]
	}

	manifest, err := o.buildManifest(ctx, req.UserID, req.ModelID, imageIDs)
	if err != nil {
		return ports.BatchSubmitResponse{}, fmt.Errorf("batch: build manifest: %w", err)
	}

	manifestKey := objectkey.Manifest(now.UnixMilli())
	if err := o.Objects.Put(ctx, manifestKey, bytes.NewReader(manifest), "application/x-ndjson"); err != nil {
		return ports.BatchSubmitResponse{}, fmt.Errorf("batch: write manifest: %w", err)
	}

	jobID, err := o.Vendor.SubmitJob(ctx, manifestKey, req.ModelID, len(imageIDs))
	if err != nil {
		return ports.BatchSubmitResponse{}, fmt.Errorf("batch: submit vendor job: %w", err)
	}

	if err := o.Jobs.MarkSubmitted(ctx, req.IntentID, jobID, manifestKey, now); err != nil {
		return ports.BatchSubmitResponse{}, err
	}

	return ports.BatchSubmitResponse{
		JobID: jobID, Status: string(mongo.StatusSubmitted), StatusURL: statusURL(jobID),
		ImageCount:            len(imageIDs),
		EstimatedCostUSDCents: int64(len(imageIDs) * costPerImageUSDCents),
		EstimatedDuration:     estimateDuration(len(imageIDs)),
	}, nil
}

func cachedResponse(job mongo.BatchJob) ports.BatchSubmitResponse {
	return ports.BatchSubmitResponse{
		JobID: job.JobID, Status: string(job.Status), StatusURL: statusURL(job.JobID),
		ImageCount: job.PendingImageCount, Cached: true,
	}
}

func statusURL(jobID ids.JobID) string {
	if jobID == "" {
		return ""
	}

	return fmt.Sprintf("/batch/jobs/%s", jobID)
}

func estimateDuration(imageCount int) time.Duration {
	return time.Duration(imageCount*durationPerImageMS) * time.Millisecond
}

type manifestRecord struct {
	ModelID    string         `json:"modelId"`
	Input      manifestInput  `json:"input"`
	CustomData string         `json:"customData"`
}

type manifestInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (o *Orchestrator) buildManifest(ctx context.Context, userID ids.UserID, modelID string, imageIDs []ids.ImageID) ([]byte, error) {
	var buf bytes.Buffer

	for _, imageID := range imageIDs {
		encoded, err := o.readAndEncodeImage(ctx, userID, imageID)
		if err != nil {
			return nil, fmt.Errorf("batch: read image %s: %w", imageID, err)
		}

		record := manifestRecord{
			ModelID: modelID, CustomData: imageID.String(),
			Input: manifestInput{Text: airlock.Prompt, Image: encoded},
		}

		line, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}

		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

func (o *Orchestrator) readAndEncodeImage(ctx context.Context, userID ids.UserID, imageID ids.ImageID) (string, error) {
	reader, err := o.Objects.Get(ctx, objectkey.Upload(userID, imageID))
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}
