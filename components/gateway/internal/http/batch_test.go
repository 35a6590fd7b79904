package http

import (
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwmongo "github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
)

func TestBatchSubmitHappyPath(t *testing.T) {
	h, _, _ := newTestHandler(t)

	jobID, err := ids.NewJobID("job-1")
	require.NoError(t, err)

	h.Orchestrator = &fakeOrchestrator{resp: ports.BatchSubmitResponse{
		JobID: jobID, Status: "submitted", StatusURL: "/batch/jobs/job-1",
		ImageCount: 2, EstimatedCostUSDCents: 10, EstimatedDuration: 5 * time.Minute,
	}}
	app := newTestApp(h)

	rec := postJSON(t, app, "/batch/submit", batchSubmitRequest{
		IntentID: "intent-1", PendingImageIDs: []string{"1700000000000-a.jpg", "1700000000001-b.jpg"},
		ModelID: "model-x", UserID: "device-abc",
	})

	require.Equal(t, fiber.StatusAccepted, rec.Code)

	var resp batchSubmitResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "submitted", resp.Status)
	assert.Equal(t, 2, resp.ImageCount)
}

func TestBatchSubmitConflictIsRetryable(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.Orchestrator = &fakeOrchestrator{err: mzerrors.EntityConflictError{
		EntityType: "batch_job", Message: "batch job already submitted for intent intent-1",
	}}
	app := newTestApp(h)

	rec := postJSON(t, app, "/batch/submit", batchSubmitRequest{
		IntentID: "intent-1", PendingImageIDs: []string{"1700000000000-a.jpg"},
		ModelID: "model-x", UserID: "device-abc",
	})

	require.Equal(t, fiber.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "retryable")
}

func TestBatchSubmitServerErrorIsNotRetryable(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.Orchestrator = &fakeOrchestrator{err: errors.New("manifest write failed")}
	app := newTestApp(h)

	rec := postJSON(t, app, "/batch/submit", batchSubmitRequest{
		IntentID: "intent-1", PendingImageIDs: []string{"1700000000000-a.jpg"},
		ModelID: "model-x", UserID: "device-abc",
	})

	require.Equal(t, fiber.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "retryable")
}

func TestBatchJobStatusFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	jobID, err := ids.NewJobID("job-1")
	require.NoError(t, err)

	userID := mustUserID(t, "device-abc")
	h.BatchJobs = &fakeJobStatusStore{jobs: map[ids.JobID]gwmongo.BatchJob{
		jobID: {JobID: jobID, UserID: userID, Status: gwmongo.StatusSubmitted, PendingImageCount: 3, ModelID: "model-x"},
	}}
	app := newTestApp(h)

	req := newRawGet(t, "/batch/jobs/job-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBatchJobStatusNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)

	req := newRawGet(t, "/batch/jobs/does-not-exist")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
