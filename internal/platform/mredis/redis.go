// Package mredis is the Redis connection hub backing the gateway's quota
// counters and emergency-stop flag (spec.md §5), adapted from the teacher's
// common/mredis package.
package mredis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Connection is a hub which deals with Redis connections.
type Connection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	Client    *redis.Client
	Connected bool
}

// Connect opens a singleton connection to Redis.
func (c *Connection) Connect(ctx context.Context) error {
	logger := c.logger()
	logger.Info("mredis: connecting")

	opts, err := redis.ParseURL(c.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("mredis: parse url: %w", err)
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("mredis: ping: %w", err)
	}

	logger.Info("mredis: connected")

	c.Connected = true
	c.Client = client

	return nil
}

// GetDB returns the redis client, connecting lazily on first use.
func (c *Connection) GetDB(ctx context.Context) (*redis.Client, error) {
	if c.Client == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client, nil
}

func (c *Connection) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return &mlog.NoneLogger{}
}
