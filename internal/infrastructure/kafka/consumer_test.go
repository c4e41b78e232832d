package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
)

type recordedMessage struct {
	topic   string
	key     string
	payload []byte
	headers []kafka.Header
}

type fakeProducer struct {
	messages []recordedMessage
	err      error
}

func (f *fakeProducer) Produce(ctx context.Context, topic, key string, message []byte) error {
	return f.ProduceHeaders(ctx, topic, key, message, nil)
}

func (f *fakeProducer) ProduceHeaders(_ context.Context, topic, key string, message []byte, headers []kafka.Header) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, recordedMessage{topic: topic, key: key, payload: message, headers: headers})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func newTestConsumer(dlq *fakeProducer) *Consumer {
	return &Consumer{
		dlq:        dlq,
		metrics:    metrics.NewConsumerMetrics(),
		retryDelay: time.Millisecond,
		logger:     zap.NewNop(),
	}
}

func testMessage() kafka.Message {
	return kafka.Message{
		Topic: domain.TopicOrderCreated,
		Key:   []byte("order-1"),
		Value: []byte(`{"order_id":"order-1"}`),
	}
}

func TestProcessCommitsOnSuccess(t *testing.T) {
	dlq := &fakeProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	ack := c.process(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return nil
	}, testMessage())

	assert.True(t, ack)
	assert.Equal(t, 1, calls)
	assert.Empty(t, dlq.messages)
}

func TestProcessCommitsOnDuplicate(t *testing.T) {
	dlq := &fakeProducer{}
	c := newTestConsumer(dlq)

	ack := c.process(context.Background(), func(context.Context, kafka.Message) error {
		return domain.ErrEventAlreadyProcessed
	}, testMessage())

	assert.True(t, ack)
	assert.Empty(t, dlq.messages)
}

func TestProcessDeadLettersPermanentFailures(t *testing.T) {
	dlq := &fakeProducer{}
	c := newTestConsumer(dlq)

	msg := testMessage()
	calls := 0
	ack := c.process(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return domain.NewValidationError("payment outcome for unknown order")
	}, msg)

	// Permanent failures are acknowledged after the payload is preserved on
	// the dead-letter topic, with no retries.
	assert.True(t, ack)
	assert.Equal(t, 1, calls)
	require.Len(t, dlq.messages, 1)

	dead := dlq.messages[0]
	assert.Equal(t, domain.TopicDeadLetter, dead.topic)
	assert.Equal(t, "order-1", dead.key)
	assert.Equal(t, msg.Value, dead.payload)

	headers := make(map[string]string, len(dead.headers))
	for _, h := range dead.headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, domain.TopicOrderCreated, headers[HeaderOriginalTopic])
	assert.Contains(t, headers[HeaderErrorMessage], "unknown order")
	assert.NotEmpty(t, headers[HeaderFailedAt])
}

func TestProcessLeavesTransientFailuresUncommitted(t *testing.T) {
	dlq := &fakeProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	ack := c.process(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return assert.AnError
	}, testMessage())

	assert.False(t, ack)
	assert.Equal(t, maxRetryAttempts, calls)
	assert.Empty(t, dlq.messages)
}

func TestProcessRecoversWithinRetryBudget(t *testing.T) {
	c := newTestConsumer(&fakeProducer{})

	calls := 0
	ack := c.process(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return assert.AnError
		}
		return nil
	}, testMessage())

	assert.True(t, ack)
	assert.Equal(t, 3, calls)
}

func TestProcessDoesNotAckWhenDeadLetterPublishFails(t *testing.T) {
	dlq := &fakeProducer{err: assert.AnError}
	c := newTestConsumer(dlq)

	ack := c.process(context.Background(), func(context.Context, kafka.Message) error {
		return domain.NewValidationError("malformed payload")
	}, testMessage())

	// If the payload cannot be preserved, the offset stays uncommitted so
	// nothing is lost.
	assert.False(t, ack)
}
