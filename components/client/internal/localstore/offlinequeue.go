package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yorutsuke/yorutsuke/components/client/internal/sync"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

// OfflineQueueRepository implements sync.OfflineQueueStore over SQLite,
// deduplicating by SyncAction.ID via an upsert.
type OfflineQueueRepository struct {
	db *sql.DB
}

// NewOfflineQueueRepository wraps an already-opened *sql.DB.
func NewOfflineQueueRepository(db *sql.DB) *OfflineQueueRepository {
	return &OfflineQueueRepository{db: db}
}

func (r *OfflineQueueRepository) Enqueue(ctx context.Context, action sync.SyncAction) error {
	payload, err := json.Marshal(action.Payload)
	if err != nil {
		return fmt.Errorf("localstore: marshal offline action payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO offline_queue (id, action_type, transaction_id, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET action_type=excluded.action_type, transaction_id=excluded.transaction_id,
			timestamp=excluded.timestamp, payload=excluded.payload`,
		action.ID, string(action.Type), action.TransactionID.String(), action.Timestamp.Format(timeLayout), string(payload),
	)
	if err != nil {
		return fmt.Errorf("localstore: enqueue offline action %s: %w", action.ID, err)
	}

	return nil
}

func (r *OfflineQueueRepository) List(ctx context.Context) ([]sync.SyncAction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, action_type, transaction_id, timestamp, payload FROM offline_queue ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("localstore: list offline queue: %w", err)
	}
	defer rows.Close()

	var out []sync.SyncAction

	for rows.Next() {
		var (
			id, actionType, txID, ts, payload string
		)

		if err := rows.Scan(&id, &actionType, &txID, &ts, &payload); err != nil {
			return nil, err
		}

		transactionID, err := ids.NewTransactionID(txID)
		if err != nil {
			return nil, err
		}

		timestamp, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("localstore: parse offline action timestamp: %w", err)
		}

		var tx sync.SyncAction
		if err := json.Unmarshal([]byte(payload), &tx.Payload); err != nil {
			return nil, fmt.Errorf("localstore: unmarshal offline action payload: %w", err)
		}

		out = append(out, sync.SyncAction{
			ID:            id,
			Type:          sync.ActionType(actionType),
			TransactionID: transactionID,
			Timestamp:     timestamp,
			Payload:       tx.Payload,
		})
	}

	return out, rows.Err()
}

func (r *OfflineQueueRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id)
	return err
}
