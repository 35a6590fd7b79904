package gatewayclient

import (
	"context"
	"time"

	"github.com/yorutsuke/yorutsuke/components/client/internal/sync"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

// transactionWire mirrors spec.md §3.4's field set for the sync endpoints,
// the same shape the gateway's http package encodes server-side.
type transactionWire struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ImageID     *string    `json:"imageId,omitempty"`
	Amount      int64      `json:"amount"`
	Type        string     `json:"type"`
	Date        string     `json:"date"`
	Merchant    string     `json:"merchant"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	Dirty       bool       `json:"dirty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	TTL         *int64     `json:"ttl,omitempty"`
}

func transactionToWire(tx transaction.Transaction) transactionWire {
	w := transactionWire{
		ID: tx.ID.String(), UserID: tx.UserID.String(), Amount: tx.Amount.Int64(),
		Type: string(tx.Type), Date: tx.Date, Merchant: tx.Merchant, Category: string(tx.Category),
		Description: tx.Description, Status: string(tx.Status), Version: tx.Version, Dirty: tx.Dirty,
		CreatedAt: tx.CreatedAt, UpdatedAt: tx.UpdatedAt, ConfirmedAt: tx.ConfirmedAt, TTL: tx.TTL,
	}

	if tx.ImageID != nil {
		s := tx.ImageID.String()
		w.ImageID = &s
	}

	return w
}

func (w transactionWire) toTransaction() (transaction.Transaction, error) {
	id, err := ids.NewTransactionID(w.ID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	userID, err := ids.NewUserID(w.UserID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	amount, err := money.New(w.Amount)
	if err != nil {
		return transaction.Transaction{}, err
	}

	tx := transaction.Transaction{
		ID: id, UserID: userID, Amount: amount, Type: transaction.Type(w.Type), Date: w.Date,
		Merchant: w.Merchant, Category: transaction.Category(w.Category), Description: w.Description,
		Status: transaction.Status(w.Status), Version: w.Version, Dirty: w.Dirty,
		CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt, ConfirmedAt: w.ConfirmedAt, TTL: w.TTL,
	}

	if w.ImageID != nil {
		imageID, err := ids.NewImageID(*w.ImageID)
		if err != nil {
			return transaction.Transaction{}, err
		}

		tx.ImageID = &imageID
	}

	return tx, nil
}

type syncPushRequestWire struct {
	UserID       string            `json:"userId"`
	Transactions []transactionWire `json:"transactions"`
}

type syncRejectionWire struct {
	ID        string          `json:"id"`
	ServerRow transactionWire `json:"serverRow"`
}

type syncPushResponseWire struct {
	Accepted []string            `json:"accepted"`
	Rejected []syncRejectionWire `json:"rejected"`
}

// Push implements sync.Client against the gateway's /sync/push endpoint.
func (c *Client) Push(ctx context.Context, userID ids.UserID, rows []transaction.Transaction) (sync.PushResult, error) {
	req := syncPushRequestWire{UserID: userID.String()}
	for _, tx := range rows {
		req.Transactions = append(req.Transactions, transactionToWire(tx))
	}

	var resp syncPushResponseWire
	if err := c.postJSON(ctx, "/sync/push", req, &resp); err != nil {
		return sync.PushResult{}, err
	}

	result := sync.PushResult{}

	for _, id := range resp.Accepted {
		txID, err := ids.NewTransactionID(id)
		if err != nil {
			continue
		}

		result.Accepted = append(result.Accepted, txID)
	}

	for _, rej := range resp.Rejected {
		txID, err := ids.NewTransactionID(rej.ID)
		if err != nil {
			continue
		}

		serverRow, err := rej.ServerRow.toTransaction()
		if err != nil {
			continue
		}

		result.Rejected = append(result.Rejected, sync.RejectedRow{ID: txID, ServerRow: serverRow})
	}

	return result, nil
}

type syncPullRequestWire struct {
	UserID string `json:"userId"`
	Since  string `json:"since,omitempty"`
}

type syncPullResponseWire struct {
	Transactions []transactionWire `json:"transactions"`
	Cursor       string            `json:"cursor"`
}

// Pull implements sync.Client against the gateway's /sync/pull endpoint.
func (c *Client) Pull(ctx context.Context, userID ids.UserID, since string) (sync.PullResult, error) {
	req := syncPullRequestWire{UserID: userID.String(), Since: since}

	var resp syncPullResponseWire
	if err := c.postJSON(ctx, "/sync/pull", req, &resp); err != nil {
		return sync.PullResult{}, err
	}

	result := sync.PullResult{Cursor: resp.Cursor}

	for _, wire := range resp.Transactions {
		tx, err := wire.toTransaction()
		if err != nil {
			continue
		}

		result.Transactions = append(result.Transactions, tx)
	}

	return result, nil
}
