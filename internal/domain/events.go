package domain

import (
	"encoding/json"
	"fmt"
)

// Kafka topics connecting the two services. checkout_dlq receives events
// whose processing failed permanently.
const (
	TopicOrderCreated     = "order_created"
	TopicPaymentCompleted = "payment_completed"
	TopicPaymentFailed    = "payment_failed"
	TopicDeadLetter       = "checkout_dlq"
)

// Event is one of the closed set of message payloads exchanged over the
// channel. DedupKey is stable across redeliveries of the same logical event
// and keys the consumer's inbox record.
type Event interface {
	Topic() string
	DedupKey() string
	Validate() error
}

// OrderCreatedEvent is emitted by the orders service when an order is
// committed, and drives payment authorization.
type OrderCreatedEvent struct {
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	TotalAmount float64     `json:"total_amount"`
	Items       []OrderItem `json:"items"`
}

func (e *OrderCreatedEvent) Topic() string    { return TopicOrderCreated }
func (e *OrderCreatedEvent) DedupKey() string { return TopicOrderCreated + ":" + e.OrderID }

func (e *OrderCreatedEvent) Validate() error {
	if e.OrderID == "" || e.UserID == "" {
		return NewValidationError("order_created event missing order or user id")
	}
	if e.TotalAmount <= 0 {
		return NewValidationError("order_created event has non-positive total")
	}
	return nil
}

// PaymentCompletedEvent tells the orders service a payment finished. Status
// is always "PAID"; it is carried on the wire for compatibility with the
// original contract.
type PaymentCompletedEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (e *PaymentCompletedEvent) Topic() string    { return TopicPaymentCompleted }
func (e *PaymentCompletedEvent) DedupKey() string { return TopicPaymentCompleted + ":" + e.OrderID }

func (e *PaymentCompletedEvent) Validate() error {
	if e.OrderID == "" {
		return NewValidationError("payment_completed event missing order id")
	}
	if e.Status != string(OrderStatusPaid) {
		return NewValidationError("payment_completed event has unexpected status %q", e.Status)
	}
	return nil
}

type PaymentFailedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (e *PaymentFailedEvent) Topic() string    { return TopicPaymentFailed }
func (e *PaymentFailedEvent) DedupKey() string { return TopicPaymentFailed + ":" + e.OrderID }

func (e *PaymentFailedEvent) Validate() error {
	if e.OrderID == "" {
		return NewValidationError("payment_failed event missing order id")
	}
	return nil
}

// DecodeEvent parses a payload received on topic into its typed variant and
// validates it. Unknown topics and malformed payloads are permanent failures.
func DecodeEvent(topic string, payload []byte) (Event, error) {
	var event Event
	switch topic {
	case TopicOrderCreated:
		event = &OrderCreatedEvent{}
	case TopicPaymentCompleted:
		event = &PaymentCompletedEvent{}
	case TopicPaymentFailed:
		event = &PaymentFailedEvent{}
	default:
		return nil, NewValidationError("no event type registered for topic %q", topic)
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, NewValidationError("malformed %s payload: %v", topic, err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s event: %w", topic, err)
	}
	return event, nil
}
