package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

// syncPushRequest is SPEC_FULL.md §4.6's /sync/push request body.
type syncPushRequest struct {
	UserID       string            `json:"userId" validate:"required"`
	Transactions []transactionWire `json:"transactions"`
}

type syncRejection struct {
	ID        string          `json:"id"`
	ServerRow transactionWire `json:"serverRow"`
}

type syncPushResponse struct {
	Accepted []string        `json:"accepted"`
	Rejected []syncRejection `json:"rejected"`
}

// SyncPush implements spec.md §4.6's push: each row is inserted if new, or
// accepted/rejected by the optimistic-concurrency version check.
func (h *Handler) SyncPush(payload any, c *fiber.Ctx) error {
	req := payload.(*syncPushRequest)

	if _, err := ids.NewUserID(req.UserID); err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	ctx := c.Context()

	resp := syncPushResponse{Accepted: []string{}, Rejected: []syncRejection{}}

	for _, wire := range req.Transactions {
		tx, err := wire.toTransaction()
		if err != nil {
			resp.Rejected = append(resp.Rejected, syncRejection{ID: wire.ID})
			continue
		}

		inserted, err := h.Transactions.CreateIfAbsent(ctx, tx)
		if err != nil {
			return nethttp.InternalServerError(c, "server", err.Error())
		}

		if inserted {
			resp.Accepted = append(resp.Accepted, tx.ID.String())
			continue
		}

		accepted, serverRow, err := h.Transactions.UpdateWithVersionCheck(ctx, tx)
		if err != nil {
			return nethttp.InternalServerError(c, "server", err.Error())
		}

		if accepted {
			resp.Accepted = append(resp.Accepted, tx.ID.String())
			continue
		}

		rejection := syncRejection{ID: tx.ID.String()}
		if serverRow != nil {
			rejection.ServerRow = transactionToWire(*serverRow)
		}

		resp.Rejected = append(resp.Rejected, rejection)
	}

	resolveTraceID(c, "")

	return c.Status(fiber.StatusOK).JSON(resp)
}

// syncPullRequest is SPEC_FULL.md §4.6's /sync/pull request body.
type syncPullRequest struct {
	UserID string `json:"userId" validate:"required"`
	Since  string `json:"since,omitempty"`
}

type syncPullResponse struct {
	Transactions []transactionWire `json:"transactions"`
	Cursor       string            `json:"cursor"`
}

// pullPageSize bounds a single /sync/pull round-trip.
const pullPageSize = 500

// SyncPull implements spec.md §4.6's cursor-based pull.
func (h *Handler) SyncPull(payload any, c *fiber.Ctx) error {
	req := payload.(*syncPullRequest)

	userID, err := ids.NewUserID(req.UserID)
	if err != nil {
		return nethttp.BadRequest(c, "validation", err.Error(), nil)
	}

	rows, cursor, err := h.Transactions.ListSince(c.Context(), userID, req.Since, pullPageSize)
	if err != nil {
		return nethttp.InternalServerError(c, "server", err.Error())
	}

	wires := make([]transactionWire, 0, len(rows))
	for _, row := range rows {
		wires = append(wires, transactionToWire(row))
	}

	resolveTraceID(c, "")

	return c.Status(fiber.StatusOK).JSON(syncPullResponse{Transactions: wires, Cursor: cursor})
}
