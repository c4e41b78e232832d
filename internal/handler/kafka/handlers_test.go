package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	app_orders "checkout/internal/app/orders"
	app_payments "checkout/internal/app/payments"
	"checkout/internal/domain"
)

type stubPaymentService struct {
	app_payments.PaymentService
	handleFn func(ctx context.Context, event *domain.OrderCreatedEvent, payload []byte) error
}

func (s *stubPaymentService) HandleOrderCreated(ctx context.Context, event *domain.OrderCreatedEvent, payload []byte) error {
	return s.handleFn(ctx, event, payload)
}

type stubOrderService struct {
	app_orders.OrderService
	applyFn func(ctx context.Context, event domain.Event, payload []byte) error
}

func (s *stubOrderService) ApplyPaymentOutcome(ctx context.Context, event domain.Event, payload []byte) error {
	return s.applyFn(ctx, event, payload)
}

func TestOrderCreatedHandlerDecodesAndDelegates(t *testing.T) {
	var got *domain.OrderCreatedEvent
	svc := &stubPaymentService{handleFn: func(_ context.Context, event *domain.OrderCreatedEvent, _ []byte) error {
		got = event
		return nil
	}}
	handler := OrderCreatedHandler(svc, zap.NewNop())

	msg := kafka.Message{
		Topic: domain.TopicOrderCreated,
		Key:   []byte("order-1"),
		Value: []byte(`{"order_id":"order-1","user_id":"user-1","total_amount":20}`),
	}
	require.NoError(t, handler(context.Background(), msg))
	require.NotNil(t, got)
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, 20.0, got.TotalAmount)
}

func TestOrderCreatedHandlerMalformedPayloadIsPermanent(t *testing.T) {
	svc := &stubPaymentService{handleFn: func(context.Context, *domain.OrderCreatedEvent, []byte) error {
		t.Fatal("service must not be called for undecodable payloads")
		return nil
	}}
	handler := OrderCreatedHandler(svc, zap.NewNop())

	err := handler(context.Background(), kafka.Message{Topic: domain.TopicOrderCreated, Value: []byte(`{`)})
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestOrderCreatedHandlerPreservesDuplicateError(t *testing.T) {
	svc := &stubPaymentService{handleFn: func(context.Context, *domain.OrderCreatedEvent, []byte) error {
		return domain.ErrEventAlreadyProcessed
	}}
	handler := OrderCreatedHandler(svc, zap.NewNop())

	msg := kafka.Message{
		Topic: domain.TopicOrderCreated,
		Value: []byte(`{"order_id":"order-1","user_id":"user-1","total_amount":20}`),
	}
	err := handler(context.Background(), msg)
	// The consumer matches with errors.Is, so wrapping must not hide it.
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
}

func TestPaymentOutcomeHandlerServesBothTopics(t *testing.T) {
	var topics []string
	svc := &stubOrderService{applyFn: func(_ context.Context, event domain.Event, _ []byte) error {
		topics = append(topics, event.Topic())
		return nil
	}}
	handler := PaymentOutcomeHandler(svc, zap.NewNop())

	require.NoError(t, handler(context.Background(), kafka.Message{
		Topic: domain.TopicPaymentCompleted,
		Value: []byte(`{"order_id":"order-1","status":"PAID"}`),
	}))
	require.NoError(t, handler(context.Background(), kafka.Message{
		Topic: domain.TopicPaymentFailed,
		Value: []byte(`{"order_id":"order-2","reason":"card_declined"}`),
	}))
	assert.Equal(t, []string{domain.TopicPaymentCompleted, domain.TopicPaymentFailed}, topics)
}

func TestPaymentOutcomeHandlerRejectsUnknownTopic(t *testing.T) {
	svc := &stubOrderService{applyFn: func(context.Context, domain.Event, []byte) error {
		t.Fatal("service must not be called for unknown topics")
		return nil
	}}
	handler := PaymentOutcomeHandler(svc, zap.NewNop())

	err := handler(context.Background(), kafka.Message{Topic: "order_shipped", Value: []byte(`{}`)})
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}
