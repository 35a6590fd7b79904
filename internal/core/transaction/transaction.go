// Package transaction implements the Transaction entity from spec.md §3.4:
// shared by the client's local mirror and the gateway's canonical store,
// with the optimistic-concurrency version field both sides honor.
package transaction

import (
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
)

// Type is the closed set of transaction directions.
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// Status is the closed set of transaction lifecycle states.
type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusConfirmed   Status = "confirmed"
	StatusDeleted     Status = "deleted"
	StatusNeedsReview Status = "needs_review"
)

// Category is enum-constrained per spec.md §3.4.
type Category string

const (
	CategoryGroceries     Category = "groceries"
	CategoryDining        Category = "dining"
	CategoryTransport     Category = "transport"
	CategoryUtilities     Category = "utilities"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryShopping      Category = "shopping"
	CategoryIncome        Category = "income"
	CategoryOther         Category = "other"
)

// Transaction is the spec.md §3.4 entity, shared by the client's local
// mirror (with dirty/sync fields meaningful) and the gateway's canonical
// row (where Dirty is always false).
type Transaction struct {
	ID          ids.TransactionID
	UserID      ids.UserID
	ImageID     *ids.ImageID
	Amount      money.Money
	Type        Type
	Date        string // ISO date, local-zone, server-derived
	Merchant    string
	Category    Category
	Description string
	Status      Status
	Version     int
	Dirty       bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	TTL         *int64 // epoch seconds, guest rows only
}

// Bump increments Version and marks the row dirty — every client-side edit
// goes through this, per spec.md §4.6's conflict policy.
func (t *Transaction) Bump(now time.Time) {
	t.Version++
	t.Dirty = true
	t.UpdatedAt = now
}

// IsGuestRow reports whether this row carries a TTL (guest-data
// expiration), per spec.md §3.4.
func (t *Transaction) IsGuestRow() bool {
	return t.TTL != nil
}
