package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	server := miniredis.RunT(t)

	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestLegacyCounterAllowsUntilLimit(t *testing.T) {
	client := newTestClient(t)
	counter := &LegacyCounter{Client: client}

	userID, err := ids.NewUserID("device-abc")
	require.NoError(t, err)

	now := time.Now()

	for i := 0; i < 30; i++ {
		ok, err := counter.CheckAndIncrement(context.Background(), userID, permit.TierGuest, now)
		require.NoError(t, err)
		assert.True(t, ok, "issuance %d should be allowed", i+1)
	}

	ok, err := counter.CheckAndIncrement(context.Background(), userID, permit.TierGuest, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmergencyStopDefaultsToNotStopped(t *testing.T) {
	client := newTestClient(t)
	stop := &EmergencyStop{Client: client}

	record, err := stop.IsStopped(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, record.Stopped)
}

func TestEmergencyStopSetAndRead(t *testing.T) {
	client := newTestClient(t)
	stop := &EmergencyStop{Client: client}

	now := time.Now()

	_, err := stop.Set(context.Background(), true, "incident-123", "ops@yorutsuke", now)
	require.NoError(t, err)

	record, err := stop.IsStopped(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, record.Stopped)
	assert.Equal(t, "incident-123", record.Reason)
}

func TestEmergencyStopServesCachedValueWithinTTL(t *testing.T) {
	client := newTestClient(t)
	stop := &EmergencyStop{Client: client}

	now := time.Now()

	_, err := stop.IsStopped(context.Background(), now)
	require.NoError(t, err)

	// Flip the flag directly in Redis, bypassing Set, to prove the cache
	// (not a fresh read) serves the next call within the TTL window.
	require.NoError(t, client.HSet(context.Background(), emergencyStopKey, "stopped", "true").Err())

	record, err := stop.IsStopped(context.Background(), now.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, record.Stopped)
}
