// Package quota implements the gateway-side half of spec.md §4.3: the
// legacy no-permit fallback counter and the globally-flipped emergency
// stop flag, both Redis-backed.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
)

// jst is the fixed offset used for the legacy fallback's dateJst key
// (spec.md §4.3 / §4.5.3's "JST date used exclusively for dated
// partitioning").
var jst = time.FixedZone("JST", 9*60*60)

// LegacyLimits are the tier-based daily caps for the no-permit fallback
// path (spec.md §4.3) — a distinct, smaller set from permit.TierLimits'
// permit-mode totals, since the two mechanisms coexist independently.
func LegacyLimits(tier permit.Tier) int {
	switch tier {
	case permit.TierGuest:
		return 30
	case permit.TierFree:
		return 50
	case permit.TierBasic:
		return 100
	case permit.TierPro:
		return 300
	default:
		return 0
	}
}

// LegacyCounter tracks the (userId, dateJst) daily counter for requests
// presenting no permit.
type LegacyCounter struct {
	Client *redis.Client
}

func legacyKey(userID ids.UserID, date string) string {
	return fmt.Sprintf("legacy-quota:%s:%s", userID.String(), date)
}

// DateJST returns now's calendar date in JST, ISO-8601 formatted — the
// legacy counter's partitioning key.
func DateJST(now time.Time) string {
	return now.In(jst).Format("2006-01-02")
}

// Count reports userID's current legacy-fallback usage for now's JST date,
// without incrementing it — used by the /quota reporting endpoint.
func (c *LegacyCounter) Count(ctx context.Context, userID ids.UserID, now time.Time) (int64, error) {
	key := legacyKey(userID, DateJST(now))

	count, err := c.Client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}

		return 0, fmt.Errorf("quota: read legacy counter: %w", err)
	}

	return count, nil
}

// ResetsAt returns the instant the legacy counter next resets: JST
// midnight following now.
func ResetsAt(now time.Time) time.Time {
	today := now.In(jst)
	nextMidnight := time.Date(today.Year(), today.Month(), today.Day()+1, 0, 0, 0, 0, jst)

	return nextMidnight
}

// CheckAndIncrement reports whether userID may issue one more presign
// under tier's legacy limit, incrementing the counter if so.
func (c *LegacyCounter) CheckAndIncrement(ctx context.Context, userID ids.UserID, tier permit.Tier, now time.Time) (bool, error) {
	limit := LegacyLimits(tier)
	key := legacyKey(userID, DateJST(now))

	count, err := c.Client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("quota: read legacy counter: %w", err)
	}

	if count >= int64(limit) {
		return false, nil
	}

	pipe := c.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("quota: increment legacy counter: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}
