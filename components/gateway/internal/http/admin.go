package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

type adminControlResponse struct {
	EmergencyStop bool   `json:"emergencyStop"`
	Reason        string `json:"reason,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	UpdatedBy     string `json:"updatedBy,omitempty"`
}

// AdminControlGet reports the current emergency-stop state (spec.md §6.2).
func (h *Handler) AdminControlGet(c *fiber.Ctx) error {
	record, err := h.EmergencyStop.IsStopped(c.Context(), h.Clock.Now())
	if err != nil {
		return nethttp.InternalServerError(c, "server", err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(adminControlResponse{
		EmergencyStop: record.Stopped, Reason: record.Reason,
		UpdatedAt: record.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"), UpdatedBy: record.UpdatedBy,
	})
}

// adminControlRequest is spec.md §6.2's /admin/control request body.
type adminControlRequest struct {
	Action string `json:"action" validate:"required,oneof=activate deactivate"`
	Reason string `json:"reason,omitempty"`
}

// AdminControlPost flips the emergency-stop flag, the circuit breaker
// spec.md §4.3's gate reads before every presign.
func (h *Handler) AdminControlPost(payload any, c *fiber.Ctx) error {
	req := payload.(*adminControlRequest)

	stopped := req.Action == "activate"

	record, err := h.EmergencyStop.Set(c.Context(), stopped, req.Reason, adminUpdatedBy(c), h.Clock.Now())
	if err != nil {
		return nethttp.InternalServerError(c, "server", err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(adminControlResponse{
		EmergencyStop: record.Stopped, Reason: record.Reason,
		UpdatedAt: record.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"), UpdatedBy: record.UpdatedBy,
	})
}

func adminUpdatedBy(c *fiber.Ctx) string {
	if by := c.Get("X-Admin-User"); by != "" {
		return by
	}

	return "unknown"
}

// adminDeleteDataRequest is spec.md §6.2's /admin/delete-data request body.
type adminDeleteDataRequest struct {
	UserID string   `json:"userId" validate:"required"`
	Types  []string `json:"types" validate:"required,min=1,dive,oneof=transactions images"`
}

type adminDeleteDataResponse struct {
	Deleted map[string]int64 `json:"deleted"`
}

// AdminDeleteData purges the account-data categories the caller names, for
// the account-deletion/right-to-erasure path.
func (h *Handler) AdminDeleteData(payload any, c *fiber.Ctx) error {
	req := payload.(*adminDeleteDataRequest)

	userID, err := ids.NewUserID(req.UserID)
	if err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	ctx := c.Context()
	deleted := map[string]int64{}

	for _, kind := range req.Types {
		switch kind {
		case "transactions":
			count, err := h.Transactions.DeleteAllForUser(ctx, userID)
			if err != nil {
				return nethttp.InternalServerError(c, "server", err.Error())
			}

			deleted["transactions"] = count

		case "images":
			keys, err := h.Objects.ListByPrefix(ctx, objectkey.Upload(userID, ""))
			if err != nil {
				return nethttp.InternalServerError(c, "server", err.Error())
			}

			var count int64

			for _, key := range keys {
				if err := h.Objects.Delete(ctx, key); err != nil {
					return nethttp.InternalServerError(c, "server", err.Error())
				}

				count++
			}

			deleted["images"] = count
		}
	}

	return c.Status(fiber.StatusOK).JSON(adminDeleteDataResponse{Deleted: deleted})
}
