package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/internal/platform/msqs"
)

type fakeQueue struct {
	messages []msqs.Message
	deleted  []string
}

func (f *fakeQueue) Receive(context.Context) ([]msqs.Message, error) {
	out := f.messages
	f.messages = nil

	return out, nil
}

func (f *fakeQueue) Delete(_ context.Context, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type fakePipeline struct {
	processed []string
	err       error
}

func (f *fakePipeline) ProcessObject(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}

	f.processed = append(f.processed, key)

	return nil
}

const sampleEvent = `{"Records":[{"s3":{"object":{"key":"uploads%2Fuser-1%2F1700000000000-receipt.webp"}}}]}`

func TestParseObjectKeysDecodesURLEscaping(t *testing.T) {
	keys, err := parseObjectKeys(sampleEvent)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "uploads/user-1/1700000000000-receipt.webp", keys[0])
}

func TestHandleProcessesAndAcknowledges(t *testing.T) {
	queue := &fakeQueue{}
	pipeline := &fakePipeline{}
	c := &Consumer{Queue: queue, Pipeline: pipeline}

	c.handle(context.Background(), msqs.Message{ReceiptHandle: "r1", Body: sampleEvent})

	assert.Equal(t, []string{"uploads/user-1/1700000000000-receipt.webp"}, pipeline.processed)
	assert.Equal(t, []string{"r1"}, queue.deleted)
}

func TestHandleLeavesMessageOnPipelineFailure(t *testing.T) {
	queue := &fakeQueue{}
	pipeline := &fakePipeline{err: errors.New("processing failed")}
	c := &Consumer{Queue: queue, Pipeline: pipeline}

	c.handle(context.Background(), msqs.Message{ReceiptHandle: "r1", Body: sampleEvent})

	assert.Empty(t, queue.deleted)
}
