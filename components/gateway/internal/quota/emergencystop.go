package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// emergencyStopKey is the single-writer control record read by every
// gateway instance (spec.md §5's "single-writer convention for mutable
// control records").
const emergencyStopKey = "control:emergency-stop"

// emergencyStopCacheTTL is how long a gateway instance trusts its last
// read before re-checking Redis (spec.md §4.3's "cached 60s").
const emergencyStopCacheTTL = 60 * time.Second

// EmergencyStopRecord is the value stored at emergencyStopKey.
type EmergencyStopRecord struct {
	Stopped   bool
	Reason    string
	UpdatedAt time.Time
	UpdatedBy string
}

// EmergencyStop reads the globally-flipped control flag, caching the last
// read for emergencyStopCacheTTL so every request doesn't round-trip to
// Redis.
type EmergencyStop struct {
	Client *redis.Client

	mu        sync.Mutex
	cached    EmergencyStopRecord
	cachedAt  time.Time
	hasCached bool
}

// IsStopped reports the current emergency-stop state, serving a cached
// value when still fresh.
func (e *EmergencyStop) IsStopped(ctx context.Context, now time.Time) (EmergencyStopRecord, error) {
	e.mu.Lock()
	if e.hasCached && now.Sub(e.cachedAt) < emergencyStopCacheTTL {
		record := e.cached
		e.mu.Unlock()

		return record, nil
	}
	e.mu.Unlock()

	record, err := e.read(ctx)
	if err != nil {
		return EmergencyStopRecord{}, err
	}

	e.mu.Lock()
	e.cached = record
	e.cachedAt = now
	e.hasCached = true
	e.mu.Unlock()

	return record, nil
}

func (e *EmergencyStop) read(ctx context.Context) (EmergencyStopRecord, error) {
	vals, err := e.Client.HGetAll(ctx, emergencyStopKey).Result()
	if err != nil {
		return EmergencyStopRecord{}, fmt.Errorf("quota: read emergency stop flag: %w", err)
	}

	if len(vals) == 0 {
		return EmergencyStopRecord{}, nil
	}

	record := EmergencyStopRecord{
		Stopped:   vals["stopped"] == "true",
		Reason:    vals["reason"],
		UpdatedBy: vals["updatedBy"],
	}

	if ts, ok := vals["updatedAt"]; ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.UpdatedAt = parsed
		}
	}

	return record, nil
}

// Set flips the emergency-stop flag, single-writer, via HSET.
func (e *EmergencyStop) Set(ctx context.Context, stopped bool, reason, updatedBy string, now time.Time) (EmergencyStopRecord, error) {
	record := EmergencyStopRecord{Stopped: stopped, Reason: reason, UpdatedAt: now, UpdatedBy: updatedBy}

	err := e.Client.HSet(ctx, emergencyStopKey, map[string]any{
		"stopped":   fmt.Sprintf("%t", stopped),
		"reason":    reason,
		"updatedAt": now.UTC().Format(time.RFC3339),
		"updatedBy": updatedBy,
	}).Err()
	if err != nil {
		return EmergencyStopRecord{}, fmt.Errorf("quota: set emergency stop flag: %w", err)
	}

	e.mu.Lock()
	e.cached = record
	e.cachedAt = now
	e.hasCached = true
	e.mu.Unlock()

	return record, nil
}
