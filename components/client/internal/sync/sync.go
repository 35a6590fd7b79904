// Package sync implements the Transaction sync engine from spec.md §4.6:
// push-then-pull against the gateway, a persisted offline queue for
// disconnected pushes, and version-merge conflict resolution on pull.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/yorutsuke/yorutsuke/components/client/internal/netmonitor"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Status is the sync engine's four-state FSM (spec.md §4.6).
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// autoSyncInterval is the "stale since last success" threshold that
// triggers an automatic full sync (spec.md §4.6's "> 5 minutes ago").
const autoSyncInterval = 5 * time.Minute

// Repository is the local mirror capability: dirty-row scan, point lookup,
// and the write paths sync needs. Backed by localstore's relational store.
type Repository interface {
	ListDirty(ctx context.Context, userID ids.UserID) ([]*transaction.Transaction, error)
	Get(ctx context.Context, id ids.TransactionID) (*transaction.Transaction, bool, error)
	Upsert(ctx context.Context, tx *transaction.Transaction) error
	ClearDirty(ctx context.Context, id ids.TransactionID) error
	MarkDirty(ctx context.Context, id ids.TransactionID) error
}

// OfflineQueueStore persists SyncAction entries across process restarts,
// deduplicating by Action.ID (spec.md §4.6's idempotency key).
type OfflineQueueStore interface {
	Enqueue(ctx context.Context, action SyncAction) error
	List(ctx context.Context) ([]SyncAction, error)
	Remove(ctx context.Context, id string) error
}

// ActionType is the closed set of offline-queue action kinds.
type ActionType string

const (
	ActionPush ActionType = "push"
)

// SyncAction is a queued, idempotent unit of offline-deferred work.
type SyncAction struct {
	ID            string
	Type          ActionType
	TransactionID ids.TransactionID
	Timestamp     time.Time
	Payload       transaction.Transaction
}

// Client is the capability for the /sync/push and /sync/pull round-trips.
type Client interface {
	Push(ctx context.Context, userID ids.UserID, rows []transaction.Transaction) (PushResult, error)
	Pull(ctx context.Context, userID ids.UserID, since string) (PullResult, error)
}

// PushResult mirrors spec.md/SPEC_FULL.md §6.2's /sync/push response.
type PushResult struct {
	Accepted []ids.TransactionID
	Rejected []RejectedRow
}

// RejectedRow carries the server's current row for a version conflict.
type RejectedRow struct {
	ID        ids.TransactionID
	ServerRow transaction.Transaction
}

// PullResult mirrors the /sync/pull response.
type PullResult struct {
	Transactions []transaction.Transaction
	Cursor       string
}

// Engine coordinates push, pull, and the offline queue, guarded by the
// four-state FSM from spec.md §4.6.
type Engine struct {
	repo    Repository
	queue   OfflineQueueStore
	client  Client
	monitor *netmonitor.Monitor
	logger  mlog.Logger

	mu           sync.Mutex
	status       Status
	lastErr      string
	lastSyncedAt time.Time
	lastCursor   string
}

// New builds an Engine and subscribes it to the network monitor. On a
// false->true edge the subscriber only logs the reconnect; it does not run
// FullSync or DrainOfflineQueue, since the engine holds no user id.
func New(repo Repository, queue OfflineQueueStore, client Client, monitor *netmonitor.Monitor, logger mlog.Logger) *Engine {
	e := &Engine{
		repo:    repo,
		queue:   queue,
		client:  client,
		monitor: monitor,
		logger:  logger,
		status:  StatusIdle,
	}

	monitor.Subscribe(func(online bool) {
		if online {
			e.logger.Infof("sync: network reconnected")
		}
	})

	return e
}

// Status returns the current FSM status and, if in error, the last message.
func (e *Engine) Status() (Status, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.status, e.lastErr
}

// tryEnterSyncing returns true and sets status=syncing iff the engine was
// not already syncing — implementing "only syncing is non-reentrant;
// attempts while syncing coalesce".
func (e *Engine) tryEnterSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusSyncing {
		return false
	}

	e.status = StatusSyncing

	return true
}

func (e *Engine) finish(status Status, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status = status
	e.lastErr = errMsg

	if status == StatusSuccess {
		e.lastSyncedAt = time.Now().UTC()
	}
}

// FullSync runs push-then-pull for userID. Errors in pull are reported but
// do not revert pushed state (spec.md §4.6).
func (e *Engine) FullSync(ctx context.Context, userID ids.UserID) error {
	if !e.tryEnterSyncing() {
		return nil
	}

	pushErr := e.Push(ctx, userID)

	pullErr := e.Pull(ctx, userID)

	switch {
	case pushErr != nil:
		e.finish(StatusError, pushErr.Error())
		return pushErr
	case pullErr != nil:
		e.finish(StatusError, pullErr.Error())
		return pullErr
	default:
		e.finish(StatusSuccess, "")
		return nil
	}
}

// ShouldAutoSync reports whether enough time has elapsed since the last
// successful sync to warrant triggering one automatically (spec.md §4.6:
// on startup, or if the last successful sync was > 5 minutes ago).
func (e *Engine) ShouldAutoSync() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastSyncedAt.IsZero() {
		return true
	}

	return time.Since(e.lastSyncedAt) > autoSyncInterval
}
