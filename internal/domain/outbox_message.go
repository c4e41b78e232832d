package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
)

// OutboxMessage is a pending event persisted in the same transaction as the
// state change that produced it. The relay publishes it to Kafka afterwards.
// Key is the Kafka partition key, so all events for one order stay ordered.
type OutboxMessage struct {
	ID        string
	Topic     string
	Key       string
	Payload   []byte
	Status    OutboxMessageStatus
	CreatedAt time.Time
	SentAt    *time.Time
}

func NewOutboxMessage(id string, event Event, key string) (*OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.Topic(), err)
	}
	return &OutboxMessage{
		ID:        id,
		Topic:     event.Topic(),
		Key:       key,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}
