package sync

import (
	"context"
	"fmt"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

// Push implements syncDirty(userId, traceId) from spec.md §4.6.
func (e *Engine) Push(ctx context.Context, userID ids.UserID) error {
	dirty, err := e.repo.ListDirty(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync: list dirty rows: %w", err)
	}

	if len(dirty) == 0 {
		return nil
	}

	if !e.monitor.IsOnline() {
		return e.queueForRetry(ctx, dirty)
	}

	rows := make([]transaction.Transaction, 0, len(dirty))
	for _, tx := range dirty {
		rows = append(rows, *tx)
	}

	result, err := e.client.Push(ctx, userID, rows)
	if err != nil {
		// Errors en-bloc: queue every row for retry (spec.md §4.6 step 4).
		if qErr := e.queueForRetry(ctx, dirty); qErr != nil {
			return qErr
		}

		return fmt.Errorf("sync: push request failed: %w", err)
	}

	for _, id := range result.Accepted {
		if err := e.repo.ClearDirty(ctx, id); err != nil {
			e.logger.Warnf("sync: clear dirty flag for %s: %v", id, err)
		}
	}

	for _, rejected := range result.Rejected {
		if err := e.resolveRejection(ctx, rejected); err != nil {
			e.logger.Warnf("sync: resolve rejection for %s: %v", rejected.ID, err)
		}
	}

	return nil
}

// resolveRejection implements spec.md §4.6's conflict policy: the client
// overwrites locally with the server's row unless the local row is itself
// dirty with a newer updatedAt, in which case it rebases and re-submits.
func (e *Engine) resolveRejection(ctx context.Context, rejected RejectedRow) error {
	local, found, err := e.repo.Get(ctx, rejected.ID)
	if err != nil {
		return err
	}

	if !found {
		return nil
	}

	if local.Dirty && local.UpdatedAt.After(rejected.ServerRow.UpdatedAt) {
		local.Version = rejected.ServerRow.Version + 1
		local.Dirty = true

		return e.repo.Upsert(ctx, local)
	}

	server := rejected.ServerRow
	server.Dirty = false

	return e.repo.Upsert(ctx, &server)
}

// queueForRetry persists each dirty row as a SyncAction, deduplicated by id.
func (e *Engine) queueForRetry(ctx context.Context, dirty []*transaction.Transaction) error {
	for _, tx := range dirty {
		action := SyncAction{
			ID:            string(tx.ID),
			Type:          ActionPush,
			TransactionID: tx.ID,
			Timestamp:     tx.UpdatedAt,
			Payload:       *tx,
		}

		if err := e.queue.Enqueue(ctx, action); err != nil {
			return fmt.Errorf("sync: enqueue offline action for %s: %w", tx.ID, err)
		}
	}

	return nil
}

// DrainOfflineQueue replays every queued SyncAction in one push. Nothing in
// the engine calls it on its own: neither a reconnect edge nor FullSync
// drains the offline queue.
func (e *Engine) DrainOfflineQueue(ctx context.Context, userID ids.UserID) error {
	actions, err := e.queue.List(ctx)
	if err != nil {
		return err
	}

	if len(actions) == 0 {
		return nil
	}

	rows := make([]transaction.Transaction, 0, len(actions))
	for _, action := range actions {
		rows = append(rows, action.Payload)
	}

	result, err := e.client.Push(ctx, userID, rows)
	if err != nil {
		return fmt.Errorf("sync: drain offline queue: %w", err)
	}

	for _, id := range result.Accepted {
		if err := e.queue.Remove(ctx, string(id)); err != nil {
			e.logger.Warnf("sync: remove drained action %s: %v", id, err)
		}

		if err := e.repo.ClearDirty(ctx, id); err != nil {
			e.logger.Warnf("sync: clear dirty flag for %s: %v", id, err)
		}
	}

	for _, rejected := range result.Rejected {
		if err := e.resolveRejection(ctx, rejected); err != nil {
			e.logger.Warnf("sync: resolve drained rejection for %s: %v", rejected.ID, err)
		}

		if err := e.queue.Remove(ctx, string(rejected.ID)); err != nil {
			e.logger.Warnf("sync: remove drained action %s: %v", rejected.ID, err)
		}
	}

	return nil
}
