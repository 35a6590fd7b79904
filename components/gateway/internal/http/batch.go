package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

// batchSubmitRequest is spec.md §6.2's /batch/submit request body.
type batchSubmitRequest struct {
	IntentID        string   `json:"intentId" validate:"required"`
	PendingImageIDs []string `json:"pendingImageIds" validate:"required,min=1"`
	ModelID         string   `json:"modelId" validate:"required"`
	UserID          string   `json:"userId" validate:"required"`
}

type batchSubmitResponse struct {
	JobID                 string `json:"jobId"`
	Status                string `json:"status"`
	StatusURL             string `json:"statusUrl"`
	ImageCount            int    `json:"imageCount"`
	EstimatedCostUSDCents int64  `json:"estimatedCost"`
	EstimatedDurationMS   int64  `json:"estimatedDuration"`
	Cached                bool   `json:"cached,omitempty"`
}

// BatchSubmit dispatches to the batch orchestrator (spec.md §4.5.2),
// translating its idempotency conflict into the 409-retryable contract.
func (h *Handler) BatchSubmit(payload any, c *fiber.Ctx) error {
	req := payload.(*batchSubmitRequest)

	intentID, err := ids.NewIntentID(req.IntentID)
	if err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	userID, err := ids.NewUserID(req.UserID)
	if err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	imageIDs := make([]ids.ImageID, 0, len(req.PendingImageIDs))

	for _, raw := range req.PendingImageIDs {
		imageID, err := ids.NewImageID(raw)
		if err != nil {
			return nethttp.BadRequest(c, "validation", err.Error(), nil)
		}

		imageIDs = append(imageIDs, imageID)
	}

	resp, err := h.Orchestrator.Submit(c.Context(), ports.BatchSubmitRequest{
		IntentID: intentID, PendingImageIDs: imageIDs, ModelID: req.ModelID, UserID: userID,
	})
	if err != nil {
		var conflict mzerrors.EntityConflictError
		if errors.As(err, &conflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"retryable": true})
		}

		return nethttp.InternalServerError(c, "server", err.Error())
	}

	resolveTraceID(c, "")

	return c.Status(fiber.StatusAccepted).JSON(batchSubmitResponse{
		JobID: resp.JobID.String(), Status: resp.Status, StatusURL: resp.StatusURL,
		ImageCount: resp.ImageCount, EstimatedCostUSDCents: resp.EstimatedCostUSDCents,
		EstimatedDurationMS: resp.EstimatedDuration.Milliseconds(), Cached: resp.Cached,
	})
}

type batchJobStatusResponse struct {
	Status            string `json:"status"`
	JobID             string `json:"jobId"`
	UserID            string `json:"userId"`
	PendingImageCount int    `json:"pendingImageCount"`
	ModelID           string `json:"modelId"`
}

// BatchJobStatus implements spec.md §6.2's GET /batch/jobs/{jobId}.
func (h *Handler) BatchJobStatus(c *fiber.Ctx) error {
	jobID, err := ids.NewJobID(c.Params("jobId"))
	if err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	job, found, err := h.BatchJobs.FindByJobID(c.Context(), jobID)
	if err != nil {
		return nethttp.InternalServerError(c, "server", err.Error())
	}

	if !found {
		return nethttp.NotFound(c, "not_found", "no such batch job")
	}

	return c.Status(fiber.StatusOK).JSON(batchJobStatusResponse{
		Status: string(job.Status), JobID: job.JobID.String(), UserID: job.UserID.String(),
		PendingImageCount: job.PendingImageCount, ModelID: job.ModelID,
	})
}
