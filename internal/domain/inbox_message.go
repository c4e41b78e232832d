package domain

import "time"

type InboxMessageStatus string

const (
	InboxStatusProcessing InboxMessageStatus = "PROCESSING"
	InboxStatusProcessed  InboxMessageStatus = "PROCESSED"
)

// InboxMessage is the durable idempotency record for one consumed event.
// ID is the event's deduplication key; inserting it claims the event for the
// current handler invocation, and flipping it to PROCESSED in the same
// transaction as the domain effect makes the effect exactly-once.
type InboxMessage struct {
	ID          string
	Topic       string
	Payload     []byte
	Status      InboxMessageStatus
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

func NewInboxMessage(event Event, payload []byte) *InboxMessage {
	return &InboxMessage{
		ID:         event.DedupKey(),
		Topic:      event.Topic(),
		Payload:    payload,
		Status:     InboxStatusProcessing,
		ReceivedAt: time.Now().UTC(),
	}
}
