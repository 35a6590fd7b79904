package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yorutsuke/yorutsuke/components/gateway/internal/quota"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

// quotaRequest is spec.md §6.2's /quota request body.
type quotaRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type guestQuotaInfo struct {
	DataExpiresAt       time.Time `json:"dataExpiresAt"`
	DaysUntilExpiration int       `json:"daysUntilExpiration"`
}

type quotaResponse struct {
	Used      int64           `json:"used"`
	Limit     int             `json:"limit"`
	Remaining int             `json:"remaining"`
	ResetsAt  time.Time       `json:"resetsAt"`
	Tier      string          `json:"tier"`
	Guest     *guestQuotaInfo `json:"guest,omitempty"`
}

// Quota reports the legacy-fallback counter's current standing for the
// caller's tier, plus guest data-expiry fields (SPEC_FULL.md §4.3).
func (h *Handler) Quota(payload any, c *fiber.Ctx) error {
	req := payload.(*quotaRequest)

	userID, err := ids.NewUserID(req.UserID)
	if err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	ctx := c.Context()
	now := h.Clock.Now()
	tier := permit.TierForUser(userID)
	limit := quota.LegacyLimits(tier)

	used, err := h.LegacyQuota.Count(ctx, userID, now)
	if err != nil {
		return nethttp.InternalServerError(c, "server", err.Error())
	}

	remaining := limit - int(used)
	if remaining < 0 {
		remaining = 0
	}

	resp := quotaResponse{
		Used: used, Limit: limit, Remaining: remaining,
		ResetsAt: quota.ResetsAt(now), Tier: string(tier),
	}

	if userID.IsGuest() && h.Transactions != nil {
		ttl, err := h.Transactions.EarliestGuestTTL(ctx, userID)
		if err != nil {
			return nethttp.InternalServerError(c, "server", err.Error())
		}

		if ttl != nil {
			expiresAt := time.Unix(*ttl, 0).UTC()
			days := int(expiresAt.Sub(now).Hours() / 24)

			if days < 0 {
				days = 0
			}

			resp.Guest = &guestQuotaInfo{DataExpiresAt: expiresAt, DaysUntilExpiration: days}
		}
	}

	resolveTraceID(c, "")

	return c.Status(fiber.StatusOK).JSON(resp)
}
