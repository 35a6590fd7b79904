package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

// presignRequest is spec.md §6.2's /presign request body.
type presignRequest struct {
	UserID      string      `json:"userId" validate:"required"`
	FileName    string      `json:"fileName" validate:"required"`
	ContentType string      `json:"contentType" validate:"required"`
	Permit      *permitWire `json:"permit,omitempty"`
	Action      string      `json:"action,omitempty"`
	S3Key       string      `json:"s3Key,omitempty"`
	TraceID     string      `json:"traceId,omitempty"`
}

type presignResponse struct {
	URL     string `json:"url"`
	Key     string `json:"key"`
	TraceID string `json:"traceId"`
}

func presignError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// requiredPermitFieldsPresent rejects a permit missing the fields §3.3
// requires before signature verification is even attempted.
func requiredPermitFieldsPresent(p permit.Permit) bool {
	return p.UserID != "" && p.Signature != "" && !p.ExpiresAt.IsZero() && !p.IssuedAt.IsZero() && p.Tier != ""
}

// Presign implements spec.md §4.3's server-side gate: emergency-stop
// circuit breaker, permit validation (or the legacy fallback counter), and
// a presigned PUT URL embedding TraceId/UserId as object metadata.
func (h *Handler) Presign(payload any, c *fiber.Ctx) error {
	req := payload.(*presignRequest)

	ctx := c.Context()
	now := h.Clock.Now()

	if h.EmergencyStop != nil {
		stop, err := h.EmergencyStop.IsStopped(ctx, now)
		if err != nil {
			return nethttp.InternalServerError(c, "server", err.Error())
		}

		if stop.Stopped {
			return presignError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
		}
	}

	userID, err := ids.NewUserID(req.UserID)
	if err != nil {
		return presignError(c, fiber.StatusBadRequest, "INVALID_PARAM")
	}

	traceID := resolveTraceID(c, req.TraceID)

	if req.Permit != nil {
		p, err := req.Permit.toPermit()
		if err != nil || !requiredPermitFieldsPresent(p) {
			return presignError(c, fiber.StatusForbidden, "INVALID_SIGNATURE")
		}

		if p.IsExpired(now) {
			return presignError(c, fiber.StatusForbidden, "PERMIT_EXPIRED")
		}

		ok, err := h.Permits.Verify(ctx, p)
		if err != nil {
			return nethttp.InternalServerError(c, "server", err.Error())
		}

		if !ok {
			return presignError(c, fiber.StatusForbidden, "INVALID_SIGNATURE")
		}
	} else {
		tier := permit.TierForUser(userID)

		allowed, err := h.LegacyQuota.CheckAndIncrement(ctx, userID, tier, now)
		if err != nil {
			return nethttp.InternalServerError(c, "server", err.Error())
		}

		if !allowed {
			return presignError(c, fiber.StatusForbidden, "QUOTA_EXCEEDED")
		}
	}

	key := objectkey.UploadWithName(userID, now.UnixMilli(), req.FileName)

	url, err := h.Objects.PresignPut(ctx, key, presignTTL, map[string]string{
		"trace-id": traceID,
		"user-id":  userID.String(),
	})
	if err != nil {
		return nethttp.InternalServerError(c, "server", err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(presignResponse{URL: url, Key: key, TraceID: traceID})
}
