// Package consumer bridges S3 Event Notification messages delivered over
// SQS to the instant OCR pipeline, implementing mlauncher.App so it runs
// as one of the binary's registered apps — the SQS analogue of the
// teacher's RabbitMQ consumer loop
// (_examples/LerianStudio-midaz/components/audit/internal/adapters/
// rabbitmq/consumer.rabbitmq.go), polling instead of pushing since SQS has
// no blocking-channel delivery primitive.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/msqs"
)

// Pipeline is the capability for running the instant OCR path against a
// single object key.
type Pipeline interface {
	ProcessObject(ctx context.Context, key string) error
}

// Queue is the capability for receiving and acknowledging SQS messages.
type Queue interface {
	Receive(ctx context.Context) ([]msqs.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Consumer polls Queue for S3 Event Notification envelopes and runs
// Pipeline against every "object created under uploads/" record.
type Consumer struct {
	Queue    Queue
	Pipeline Pipeline
	Logger   mlog.Logger

	shutdown chan struct{}
}

func (c *Consumer) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return &mlog.NoneLogger{}
}

// s3EventNotification is AWS's standard S3 → SQS event envelope, narrowed
// to the fields this consumer needs.
type s3EventNotification struct {
	Records []struct {
		S3 struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// Run implements mlauncher.App: poll until the launcher shuts down.
func (c *Consumer) Run(*mlauncher.Launcher) error {
	c.shutdown = make(chan struct{})
	ctx := context.Background()

	for {
		select {
		case <-c.shutdown:
			return nil
		default:
		}

		messages, err := c.Queue.Receive(ctx)
		if err != nil {
			c.logger().Errorf("consumer: receive: %v", err)
			continue
		}

		for _, m := range messages {
			c.handle(ctx, m)
		}
	}
}

// Shutdown stops the poll loop after the in-flight Receive call returns.
func (c *Consumer) Shutdown() {
	if c.shutdown != nil {
		close(c.shutdown)
	}
}

func (c *Consumer) handle(ctx context.Context, m msqs.Message) {
	keys, err := parseObjectKeys(m.Body)
	if err != nil {
		c.logger().Errorf("consumer: parse event: %v", err)
		return
	}

	for _, key := range keys {
		if err := c.Pipeline.ProcessObject(ctx, key); err != nil {
			c.logger().Errorf("consumer: process %s: %v", key, err)
			return
		}
	}

	if err := c.Queue.Delete(ctx, m.ReceiptHandle); err != nil {
		c.logger().Errorf("consumer: delete message: %v", err)
	}
}

// parseObjectKeys decodes an S3 Event Notification body into its object
// keys, URL-decoding each one (S3 percent-encodes keys in event payloads).
func parseObjectKeys(body string) ([]string, error) {
	var event s3EventNotification
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return nil, fmt.Errorf("consumer: decode s3 event: %w", err)
	}

	keys := make([]string, 0, len(event.Records))

	for _, record := range event.Records {
		decoded, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("consumer: decode key %q: %w", record.S3.Object.Key, err)
		}

		keys = append(keys, decoded)
	}

	return keys, nil
}
