// Package msqs wraps AWS SQS for the instant processor's "object created
// under uploads/" event queue (SPEC_FULL.md §4.5's storage-bindings table:
// S3 Event Notifications land here, distinct from the batch worker's
// RabbitMQ-backed result envelope). Adapted from mrabbitmq's connection-hub
// shape onto the SQS receive/delete poll loop instead of an AMQP channel.
package msqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// maxMessages is the largest batch ReceiveMessage allows per call.
const maxMessages = 10

// longPollSeconds keeps each empty poll cheap while still reacting quickly
// to new events (SQS caps WaitTimeSeconds at 20).
const longPollSeconds = 20

// Message is one received SQS message, narrowed to what a consumer needs
// to process it and later acknowledge it.
type Message struct {
	ReceiptHandle string
	Body          string
}

// Queue polls a single SQS queue.
type Queue struct {
	Client   *sqs.Client
	QueueURL string
	Logger   mlog.Logger
}

func (q *Queue) logger() mlog.Logger {
	if q.Logger != nil {
		return q.Logger
	}

	return &mlog.NoneLogger{}
}

// Receive long-polls for up to maxMessages, returning immediately with
// whatever arrived (possibly none) once the wait window elapses.
func (q *Queue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.QueueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     longPollSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("msqs: receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{ReceiptHandle: aws.ToString(m.ReceiptHandle), Body: aws.ToString(m.Body)})
	}

	return messages, nil
}

// Delete acknowledges a message, removing it from the queue — called only
// once its event has been durably handled (or definitively discarded).
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.QueueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("msqs: delete: %w", err)
	}

	return nil
}
