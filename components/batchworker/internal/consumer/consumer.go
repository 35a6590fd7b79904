// Package consumer ranges over the RabbitMQ queue spec.md §4.5's storage
// bindings name for batch completion events, handing each job's
// "batch-output/{jobId}/output.jsonl" key to the result handler. Grounded
// directly on the teacher's
// _examples/LerianStudio-midaz/components/audit/internal/adapters/rabbitmq/
// consumer.rabbitmq.go shape — a goroutine ranging over Channel.Consume —
// rather than instantprocessor's SQS poll loop, since RabbitMQ pushes
// deliveries over a blocking channel instead of requiring a poll.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/mrabbitmq"
)

// ResultHandler is the capability for ingesting one job's output.jsonl.
type ResultHandler interface {
	HandleOutput(ctx context.Context, outputKey string) error
}

// resultEnvelope is the queue message body: just the output key, since
// everything else the handler needs (the job's owner, submit time) is
// looked up from the jobId that key encodes.
type resultEnvelope struct {
	OutputKey string `json:"outputKey"`
}

// Consumer ranges over QueueName and runs Handler against every delivery.
type Consumer struct {
	Connection *mrabbitmq.Connection
	Handler    ResultHandler
	QueueName  string
	Logger     mlog.Logger
}

func (c *Consumer) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return &mlog.NoneLogger{}
}

// Run implements mlauncher.App: consume until the channel's delivery
// stream closes (which happens when the Launcher's owning process tears
// the connection down).
func (c *Consumer) Run(*mlauncher.Launcher) error {
	channel, err := c.Connection.GetChannel(context.Background())
	if err != nil {
		return fmt.Errorf("consumer: get channel: %w", err)
	}

	deliveries, err := channel.Consume(c.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer: register consumer: %w", err)
	}

	c.logger().Infof("consumer: listening on %s", c.QueueName)

	for delivery := range deliveries {
		ctx := context.Background()

		outputKey, err := parseOutputKey(delivery.Body)
		if err != nil {
			c.logger().Errorf("consumer: parse delivery: %v", err)
			_ = delivery.Nack(false, false)

			continue
		}

		if err := c.Handler.HandleOutput(ctx, outputKey); err != nil {
			c.logger().Errorf("consumer: handle %s: %v", outputKey, err)
			_ = delivery.Nack(false, true)

			continue
		}

		_ = delivery.Ack(false)
	}

	return nil
}

// parseOutputKey decodes the delivery body and confirms it's a well-formed
// batch-output key before the result handler ever sees it.
func parseOutputKey(body []byte) (string, error) {
	var envelope resultEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}

	if _, err := objectkey.ParseBatchOutput(envelope.OutputKey); err != nil {
		return "", err
	}

	return envelope.OutputKey, nil
}
