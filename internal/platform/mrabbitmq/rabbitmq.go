// Package mrabbitmq is the RabbitMQ connection hub backing the batch
// worker's result envelope and dead-letter queues (spec.md §4.5.3), adapted
// from the teacher's common/mrabbitmq package onto amqp091-go — the
// dependency actually pinned in the teacher's own go.mod, rather than the
// older streadway/amqp its common package imports.
package mrabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// Connection is a hub which deals with RabbitMQ connections.
type Connection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	conn      *amqp.Connection
	Channel   *amqp.Channel
	Connected bool
}

// Connect opens a singleton connection and channel to RabbitMQ.
func (c *Connection) Connect(ctx context.Context) error {
	logger := c.logger()
	logger.Info("mrabbitmq: connecting")

	conn, err := amqp.Dial(c.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("mrabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("mrabbitmq: open channel: %w", err)
	}

	c.conn = conn
	c.Channel = ch
	c.Connected = true

	logger.Info("mrabbitmq: connected")

	return nil
}

// GetChannel returns the channel, connecting lazily on first use.
func (c *Connection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	if !c.Connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Channel, nil
}

// HealthCheck passively declares a well-known queue to confirm the channel
// is alive without side effects on a missing queue.
func (c *Connection) HealthCheck(queueName string) bool {
	if c.Channel == nil {
		return false
	}

	_, err := c.Channel.QueueDeclarePassive(queueName, true, false, false, false, nil)
	if err != nil {
		c.logger().Errorf("mrabbitmq: health check failed: %v", err)
		return false
	}

	return true
}

// Close tears down the channel and connection.
func (c *Connection) Close() error {
	if c.Channel != nil {
		_ = c.Channel.Close()
	}

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}

func (c *Connection) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return &mlog.NoneLogger{}
}
