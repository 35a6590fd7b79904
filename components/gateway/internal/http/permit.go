package http

import (
	"github.com/gofiber/fiber/v2"

	gwpermit "github.com/yorutsuke/yorutsuke/components/gateway/internal/permit"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

// permitRequest is spec.md §6.2's /permit request body. ValidDays is a
// pointer so an omitted field (nil, default to gwpermit.DefaultValidDays)
// is distinguishable from an explicit 0 (rejected, per spec.md §4.4).
type permitRequest struct {
	UserID    string `json:"userId" validate:"required"`
	ValidDays *int   `json:"validDays,omitempty"`
}

type permitResponse struct {
	Permit permitWire `json:"permit"`
}

// IssuePermit implements spec.md §4.4's issue path.
func (h *Handler) IssuePermit(payload any, c *fiber.Ctx) error {
	req := payload.(*permitRequest)

	userID, err := ids.NewUserID(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "INVALID_PARAM"})
	}

	validDays := gwpermit.DefaultValidDays
	if req.ValidDays != nil {
		validDays = *req.ValidDays
	}

	p, err := h.Permits.Issue(c.Context(), userID, validDays)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "INVALID_PARAM"})
	}

	resolveTraceID(c, "")

	return c.Status(fiber.StatusOK).JSON(permitResponse{Permit: permitToWire(p)})
}
