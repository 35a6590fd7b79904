// Package ids defines the nominal identifier types shared by every layer of
// Yorutsuke. Each identifier is a distinct string-backed type so that a raw
// string can never silently cross a core boundary in place of the real
// thing — widening must go through the constructor below, which validates
// the invariants spec.md §3.1 assigns to that identifier.
package ids

import (
	"fmt"
	"strings"
)

// UserID identifies the owner of every receipt, permit, and transaction.
type UserID string

// DeviceGuestPrefixes are the UserID prefixes that imply the guest tier.
var DeviceGuestPrefixes = []string{"device-", "ephemeral-"}

// NewUserID validates and returns a UserID.
func NewUserID(s string) (UserID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ids: user id must not be empty")
	}

	return UserID(s), nil
}

// IsGuest reports whether this UserID implies the guest tier per spec.md §3.1.
func (u UserID) IsGuest() bool {
	for _, p := range DeviceGuestPrefixes {
		if strings.HasPrefix(string(u), p) {
			return true
		}
	}

	return false
}

func (u UserID) String() string { return string(u) }

// ImageID identifies a captured receipt image, shaped {timestamp}-{filename-stem}.
type ImageID string

// NewImageID validates and returns an ImageID.
func NewImageID(s string) (ImageID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ids: image id must not be empty")
	}

	return ImageID(s), nil
}

func (i ImageID) String() string { return string(i) }

// TransactionID identifies a Transaction row. Stable for AI-created rows
// (a function of ImageID), a fresh UUID for manually entered ones.
type TransactionID string

// NewTransactionID validates and returns a TransactionID.
func NewTransactionID(s string) (TransactionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ids: transaction id must not be empty")
	}

	return TransactionID(s), nil
}

func (t TransactionID) String() string { return string(t) }

// TransactionIDForImage computes the stable TransactionID for an AI-created
// row, per spec.md §4.5.1: "tx-" + imageId.
func TransactionIDForImage(imageID ImageID) TransactionID {
	return TransactionID("tx-" + imageID.String())
}

// IntentID is an idempotency key for side-effectful calls (UUID v4 shaped,
// but not validated as such here — callers mint it, the core only carries it).
type IntentID string

// NewIntentID validates and returns an IntentID.
func NewIntentID(s string) (IntentID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ids: intent id must not be empty")
	}

	return IntentID(s), nil
}

func (i IntentID) String() string { return string(i) }

// TraceID is carried across every log line and request.
type TraceID string

// NewTraceID validates and returns a TraceID.
func NewTraceID(s string) (TraceID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ids: trace id must not be empty")
	}

	return TraceID(s), nil
}

func (t TraceID) String() string { return string(t) }

// JobID is assigned by the OCR vendor once a batch job is submitted.
type JobID string

// NewJobID validates and returns a JobID.
func NewJobID(s string) (JobID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("ids: job id must not be empty")
	}

	return JobID(s), nil
}

func (j JobID) String() string { return string(j) }
