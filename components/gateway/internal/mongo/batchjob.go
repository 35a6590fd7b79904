// Package mongo is the gateway's OCR batch job store, grounded on the
// teacher's MongoDB metadata repository: a thin model/entity split backed
// by internal/platform/mmongo's connection hub.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/platform/mmongo"
)

// Status is a BatchJob's lifecycle state (spec.md §3.5).
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusSubmitted  Status = "SUBMITTED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

const (
	collectionName = "batch_jobs"
	jobTTL         = 7 * 24 * time.Hour
)

// BatchJob mirrors spec.md §3.5's record shape. IntentID is the true
// primary key; JobID is assigned once the vendor accepts submission.
type BatchJob struct {
	IntentID          ids.IntentID
	JobID             ids.JobID
	UserID            ids.UserID
	Status            Status
	SubmitTime        time.Time
	PendingImageCount int
	ModelID           string
	ManifestURI       string
	ExpiresAt         time.Time
}

// batchJobModel is the BSON row shape.
type batchJobModel struct {
	IntentID          string    `bson:"intentId"`
	JobID             string    `bson:"jobId"`
	UserID            string    `bson:"userId"`
	Status            string    `bson:"status"`
	SubmitTime        time.Time `bson:"submitTime"`
	PendingImageCount int       `bson:"pendingImageCount"`
	ModelID           string    `bson:"modelId"`
	ManifestURI       string    `bson:"manifestUri"`
	ExpiresAt         time.Time `bson:"ttl"`
}

func modelFromJob(job BatchJob) batchJobModel {
	return batchJobModel{
		IntentID: job.IntentID.String(), JobID: job.JobID.String(), UserID: job.UserID.String(),
		Status: string(job.Status), SubmitTime: job.SubmitTime, PendingImageCount: job.PendingImageCount,
		ModelID: job.ModelID, ManifestURI: job.ManifestURI, ExpiresAt: job.ExpiresAt,
	}
}

func (m batchJobModel) toJob() (BatchJob, error) {
	intentID, err := ids.NewIntentID(m.IntentID)
	if err != nil {
		return BatchJob{}, err
	}

	userID, err := ids.NewUserID(m.UserID)
	if err != nil {
		return BatchJob{}, err
	}

	job := BatchJob{
		IntentID: intentID, UserID: userID, Status: Status(m.Status), SubmitTime: m.SubmitTime,
		PendingImageCount: m.PendingImageCount, ModelID: m.ModelID, ManifestURI: m.ManifestURI, ExpiresAt: m.ExpiresAt,
	}

	if m.JobID != "" {
		jobID, err := ids.NewJobID(m.JobID)
		if err == nil {
			job.JobID = jobID
		}
	}

	return job, nil
}

// BatchJobRepository is the MongoDB-backed implementation of the jobs
// table the orchestrator (spec.md §4.5.2) reads and writes.
type BatchJobRepository struct {
	connection *mmongo.Connection
}

// NewBatchJobRepository binds a repository to a connection hub and ensures
// the intentId uniqueness index spec.md §3.5 requires exists.
func NewBatchJobRepository(ctx context.Context, connection *mmongo.Connection) (*BatchJobRepository, error) {
	repo := &BatchJobRepository{connection: connection}

	db, err := connection.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}

	_, err = db.Collection(collectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "intentId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: create intentId index: %w", err)
	}

	return repo, nil
}

// FindByIntentID implements spec.md §4.5.2 step 1's idempotency pre-check.
func (r *BatchJobRepository) FindByIntentID(ctx context.Context, intentID ids.IntentID) (BatchJob, bool, error) {
	db, err := r.connection.GetDatabase(ctx)
	if err != nil {
		return BatchJob{}, false, err
	}

	var model batchJobModel

	err = db.Collection(collectionName).FindOne(ctx, bson.M{"intentId": intentID.String()}).Decode(&model)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return BatchJob{}, false, nil
		}

		return BatchJob{}, false, fmt.Errorf("mongo: find batch job %s: %w", intentID, err)
	}

	job, err := model.toJob()
	if err != nil {
		return BatchJob{}, false, err
	}

	return job, true, nil
}

// InsertBarrier conditionally inserts a PROCESSING row, emulating spec.md
// §4.5.2 step 2's attribute_not_exists(intentId) barrier: a duplicate-key
// error from the unique index *is* the conditional failure, returned as an
// EntityConflictError so callers can map it straight to a 409 retriable.
func (r *BatchJobRepository) InsertBarrier(ctx context.Context, job BatchJob) error {
	db, err := r.connection.GetDatabase(ctx)
	if err != nil {
		return err
	}

	job.Status = StatusProcessing

	_, err = db.Collection(collectionName).InsertOne(ctx, modelFromJob(job))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return mzerrors.EntityConflictError{
				EntityType: "batch_job",
				Message:    fmt.Sprintf("batch job already submitted for intent %s", job.IntentID),
				Err:        err,
			}
		}

		return fmt.Errorf("mongo: insert batch job barrier: %w", err)
	}

	return nil
}

// MarkSubmitted records the vendor's accepted job and moves the row to
// SUBMITTED (spec.md §4.5.2 step 4), with a 7-day TTL.
func (r *BatchJobRepository) MarkSubmitted(ctx context.Context, intentID ids.IntentID, jobID ids.JobID, manifestURI string, now time.Time) error {
	db, err := r.connection.GetDatabase(ctx)
	if err != nil {
		return err
	}

	filter := bson.M{"intentId": intentID.String()}
	update := bson.M{"$set": bson.M{
		"jobId":       jobID.String(),
		"status":      string(StatusSubmitted),
		"manifestUri": manifestURI,
		"submitTime":  now,
		"ttl":         now.Add(jobTTL),
	}}

	_, err = db.Collection(collectionName).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongo: mark batch job submitted: %w", err)
	}

	return nil
}

// MarkTerminal transitions a job to COMPLETED or FAILED once the result
// handler (spec.md §4.5.3) finishes ingesting its output.
func (r *BatchJobRepository) MarkTerminal(ctx context.Context, jobID ids.JobID, status Status) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("mongo: %q is not a terminal batch job status", status)
	}

	db, err := r.connection.GetDatabase(ctx)
	if err != nil {
		return err
	}

	_, err = db.Collection(collectionName).UpdateOne(ctx,
		bson.M{"jobId": jobID.String()},
		bson.M{"$set": bson.M{"status": string(status)}})
	if err != nil {
		return fmt.Errorf("mongo: mark batch job %s: %w", status, err)
	}

	return nil
}

// FindByJobID supports the gateway's /batch/jobs/{jobId} polling endpoint.
func (r *BatchJobRepository) FindByJobID(ctx context.Context, jobID ids.JobID) (BatchJob, bool, error) {
	db, err := r.connection.GetDatabase(ctx)
	if err != nil {
		return BatchJob{}, false, err
	}

	var model batchJobModel

	err = db.Collection(collectionName).FindOne(ctx, bson.M{"jobId": jobID.String()}).Decode(&model)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return BatchJob{}, false, nil
		}

		return BatchJob{}, false, fmt.Errorf("mongo: find batch job by jobId %s: %w", jobID, err)
	}

	job, err := model.toJob()
	if err != nil {
		return BatchJob{}, false, err
	}

	return job, true, nil
}
