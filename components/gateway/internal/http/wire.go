package http

import (
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

// permitWire is the exact field set spec.md §6.3 fixes for the wire
// format: userId, totalLimit, dailyRate, expiresAt, issuedAt, signature,
// tier, keyVersion — nothing more, nothing renamed.
type permitWire struct {
	UserID     string    `json:"userId"`
	TotalLimit int       `json:"totalLimit"`
	DailyRate  int       `json:"dailyRate"`
	ExpiresAt  time.Time `json:"expiresAt"`
	IssuedAt   time.Time `json:"issuedAt"`
	Signature  string    `json:"signature"`
	Tier       string    `json:"tier"`
	KeyVersion int       `json:"keyVersion"`
}

func permitToWire(p permit.Permit) permitWire {
	return permitWire{
		UserID: p.UserID.String(), TotalLimit: p.TotalLimit, DailyRate: p.DailyRate,
		ExpiresAt: p.ExpiresAt, IssuedAt: p.IssuedAt, Signature: p.Signature,
		Tier: string(p.Tier), KeyVersion: p.KeyVersion,
	}
}

func (w permitWire) toPermit() (permit.Permit, error) {
	userID, err := ids.NewUserID(w.UserID)
	if err != nil {
		return permit.Permit{}, err
	}

	return permit.Permit{
		UserID: userID, TotalLimit: w.TotalLimit, DailyRate: w.DailyRate,
		ExpiresAt: w.ExpiresAt, IssuedAt: w.IssuedAt, Signature: w.Signature,
		Tier: permit.Tier(w.Tier), KeyVersion: w.KeyVersion,
	}, nil
}

// transactionWire mirrors spec.md §3.4's field set for the sync endpoints.
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

func (w transactionWire) toTransaction() (*transaction.Transaction, error) {
	id, err := ids.NewTransactionID(w.ID)
	if err != nil {
		return nil, err
	}

	userID, err := ids.NewUserID(w.UserID)
	if err != nil {
		return nil, err
	}

	amount, err := money.New(w.Amount)
	if err != nil {
		return nil, err
	}

	tx := &transaction.Transaction{
		ID: id, UserID: userID, Amount: amount, Type: transaction.Type(w.Type), Date: w.Date,
		Merchant: w.Merchant, Category: transaction.Category(w.Category), Description: w.Description,
		Status: transaction.Status(w.Status), Version: w.Version, Dirty: w.Dirty,
		CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt, ConfirmedAt: w.ConfirmedAt, TTL: w.TTL,
	}

	if w.ImageID != nil {
		imageID, err := ids.NewImageID(*w.ImageID)
		if err != nil {
			return nil, err
		}

		tx.ImageID = &imageID
	}

	return tx, nil
}
