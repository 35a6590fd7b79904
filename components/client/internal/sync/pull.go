package sync

import (
	"context"
	"fmt"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

// Pull implements pull(userId, since?) from spec.md §4.6: version-merge
// every returned row into the local mirror.
func (e *Engine) Pull(ctx context.Context, userID ids.UserID) error {
	e.mu.Lock()
	since := e.lastCursor
	e.mu.Unlock()

	result, err := e.client.Pull(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("sync: pull request failed: %w", err)
	}

	for _, remote := range result.Transactions {
		if err := e.mergeRemote(ctx, remote); err != nil {
			e.logger.Warnf("sync: merge remote row %s: %v", remote.ID, err)
		}
	}

	e.mu.Lock()
	e.lastCursor = result.Cursor
	e.mu.Unlock()

	return nil
}

// mergeRemote applies spec.md §4.6's version-merge rule:
//   - remote.version > local.version: accept.
//   - remote.version == local.version: server echo, ignore.
//   - remote.version < local.version: lost push, re-mark dirty, leave local as-is.
func (e *Engine) mergeRemote(ctx context.Context, remote transaction.Transaction) error {
	local, found, err := e.repo.Get(ctx, remote.ID)
	if err != nil {
		return err
	}

	if !found {
		remote.Dirty = false
		return e.repo.Upsert(ctx, &remote)
	}

	switch {
	case remote.Version > local.Version:
		remote.Dirty = false
		return e.repo.Upsert(ctx, &remote)
	case remote.Version == local.Version:
		return nil
	default:
		return e.repo.MarkDirty(ctx, local.ID)
	}
}
