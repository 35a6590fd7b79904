// Package permit implements the Permit value type from spec.md §3.3: an
// HMAC-SHA256 signed capability token constraining total and daily uploads
// per user, plus the canonical message construction and key-rotated
// sign/verify primitives from spec.md §4.4.
package permit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

// Tier is the closed set of account tiers.
type Tier string

const (
	TierGuest Tier = "guest"
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// TierLimits returns the tier-based totalLimit and dailyRate used at
// issuance time (spec.md §4.4). dailyRate of 0 means "unlimited per day"
// (pro tier). Guest's 50/5 matches the worked signature example in
// spec.md §4.4 ("device-abc:50:5:...").
func TierLimits(tier Tier) (totalLimit, dailyRate int) {
	switch tier {
	case TierGuest:
		return 50, 5
	case TierFree:
		return 100, 10
	case TierBasic:
		return 500, 50
	case TierPro:
		return 5000, 0
	default:
		return 0, 0
	}
}

// TierForUser derives the tier from a UserID prefix, per spec.md §3.1:
// device-* and ephemeral-* imply the guest tier. Every other user is
// assigned by the caller (issuance looks up the account's real tier);
// this function only covers the prefix-derivable guest case and defaults
// to TierFree otherwise.
func TierForUser(userID ids.UserID) Tier {
	if userID.IsGuest() {
		return TierGuest
	}

	return TierFree
}

// Permit is the signed capability token from spec.md §3.3.
type Permit struct {
	UserID     ids.UserID
	TotalLimit int
	DailyRate  int
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Tier       Tier
	KeyVersion int
	Signature  string
}

// CanonicalMessage builds the exact byte sequence that gets HMAC-signed:
// "userId:totalLimit:dailyRate:expiresAt:issuedAt", spec.md §3.3 — no
// JSON, no field reordering, no whitespace.
func CanonicalMessage(userID ids.UserID, totalLimit, dailyRate int, expiresAt, issuedAt time.Time) string {
	return strings.Join([]string{
		userID.String(),
		strconv.Itoa(totalLimit),
		strconv.Itoa(dailyRate),
		expiresAt.UTC().Format(time.RFC3339),
		issuedAt.UTC().Format(time.RFC3339),
	}, ":")
}

// Sign computes the hex-lowercase HMAC-SHA256 signature of message under key.
func Sign(message string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))

	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of message under key,
// in constant time.
func Verify(message, signature string, key []byte) bool {
	expected := Sign(message, key)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// KeySet is the ordered list of active signing keys from spec.md §4.4's key
// rotation: the current key signs, and verification tries every key
// (current + N prior) in version order, earliest match first.
type KeySet struct {
	// ActiveVersion is the keyVersion used for new signatures.
	ActiveVersion int
	// Keys maps keyVersion to key material, current and prior versions.
	Keys map[int][]byte
}

// Issue builds and signs a new Permit using the current key.
func (ks KeySet) Issue(userID ids.UserID, tier Tier, issuedAt time.Time, validDays int) (Permit, error) {
	key, ok := ks.Keys[ks.ActiveVersion]
	if !ok {
		return Permit{}, fmt.Errorf("permit: no key material for active version %d", ks.ActiveVersion)
	}

	totalLimit, dailyRate := TierLimits(tier)
	expiresAt := issuedAt.AddDate(0, 0, validDays)

	message := CanonicalMessage(userID, totalLimit, dailyRate, expiresAt, issuedAt)

	return Permit{
		UserID:     userID,
		TotalLimit: totalLimit,
		DailyRate:  dailyRate,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		Tier:       tier,
		KeyVersion: ks.ActiveVersion,
		Signature:  Sign(message, key),
	}, nil
}

// Verify checks p's signature against every key in ks, in ascending
// version order (earliest-match-first per spec.md §4.4), regardless of
// which keyVersion p claims — a tampered keyVersion field must not let a
// permit skip verification against the correct key.
func (ks KeySet) Verify(p Permit) bool {
	message := CanonicalMessage(p.UserID, p.TotalLimit, p.DailyRate, p.ExpiresAt, p.IssuedAt)

	versions := make([]int, 0, len(ks.Keys))
	for v := range ks.Keys {
		versions = append(versions, v)
	}

	sort.Ints(versions)

	for _, v := range versions {
		if Verify(message, p.Signature, ks.Keys[v]) {
			return true
		}
	}

	return false
}

// IsExpired reports whether p has expired as of now.
func (p Permit) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
