// Package quota implements the client-side permit check from spec.md §4.3:
// checkCanUpload()'s strict decision priority and incrementUsage()'s
// atomic counter bump, against the bbolt-backed permit cache.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
)

// Reason is the closed set of checkCanUpload outcomes, in the exact
// priority order spec.md §4.3 specifies.
type Reason string

const (
	ReasonAllowed           Reason = "allowed"
	ReasonNoPermit          Reason = "no_permit"
	ReasonPermitExpired     Reason = "permit_expired"
	ReasonTotalLimitReached Reason = "total_limit_reached"
	ReasonDailyLimitReached Reason = "daily_limit_reached"
)

// Decision is the result of checkCanUpload.
type Decision struct {
	Allowed        bool
	Reason         Reason
	RemainingTotal int
	RemainingDaily int
}

// Checker evaluates and records upload permission against the permit
// cache, parameterized over Clock so tests can control "now" (spec.md
// §8's "checkCanUpload() is a pure function of stored state and
// wall-clock time").
type Checker struct {
	Store ports.PermitStore
	Clock ports.Clock
}

// CheckCanUpload implements spec.md §4.3's strict decision priority:
// 1. no_permit if none stored
// 2. permit_expired if now() >= expiresAt
// 3. total_limit_reached if totalUsed >= totalLimit
// 4. daily_limit_reached if dailyRate > 0 and dailyUsage[today] >= dailyRate
// 5. else allowed
func (c *Checker) CheckCanUpload(ctx context.Context, userID ids.UserID) (Decision, error) {
	stored, err := c.Store.Load(ctx, userID)
	if err != nil {
		return Decision{Allowed: false, Reason: ReasonNoPermit}, nil
	}

	now := c.Clock.Now()
	p := stored.Permit

	if p.IsExpired(now) {
		return Decision{Allowed: false, Reason: ReasonPermitExpired}, nil
	}

	if stored.TotalUsed >= p.TotalLimit {
		return Decision{
			Allowed:        false,
			Reason:         ReasonTotalLimitReached,
			RemainingTotal: 0,
			RemainingDaily: remainingDaily(stored, now),
		}, nil
	}

	today := localDate(now)

	if p.DailyRate > 0 && stored.DailyUsage[today] >= p.DailyRate {
		return Decision{
			Allowed:        false,
			Reason:         ReasonDailyLimitReached,
			RemainingTotal: p.TotalLimit - stored.TotalUsed,
			RemainingDaily: 0,
		}, nil
	}

	return Decision{
		Allowed:        true,
		Reason:         ReasonAllowed,
		RemainingTotal: p.TotalLimit - stored.TotalUsed,
		RemainingDaily: remainingDaily(stored, now),
	}, nil
}

// IncrementUsage atomically bumps the stored permit's usage counters and
// persists the result — spec.md §4.3's incrementUsage(), called once an
// upload has actually been dispatched.
func (c *Checker) IncrementUsage(ctx context.Context, userID ids.UserID) error {
	stored, err := c.Store.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("quota: load permit for %s: %w", userID, err)
	}

	now := c.Clock.Now()
	stored.Increment(localDate(now), now)

	return c.Store.Save(ctx, userID, stored)
}

func remainingDaily(stored permit.StoredPermit, now time.Time) int {
	if stored.Permit.DailyRate == 0 {
		return -1 // unlimited, per spec.md §4.3's dailyRate==0 short-circuit
	}

	remaining := stored.Permit.DailyRate - stored.DailyUsage[localDate(now)]
	if remaining < 0 {
		return 0
	}

	return remaining
}

// localDate renders now as the device-local calendar date, ISO-8601
// YYYY-MM-DD, per spec.md §4.3.
func localDate(now time.Time) string {
	return now.Format("2006-01-02")
}
