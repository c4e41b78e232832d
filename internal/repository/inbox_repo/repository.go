package inbox_repo

import (
	"context"

	"checkout/internal/domain"
)

// InboxRepository implements the claim side of the idempotent-consumer
// contract. Claim inserts the deduplication record before domain processing
// starts; the PROCESSED mark is written by the entity repositories inside the
// effect transaction.
type InboxRepository interface {
	// Claim registers msg.ID as in-flight. Returns
	// domain.ErrEventAlreadyProcessed when a PROCESSED record exists, and
	// domain.ErrEventInFlight when another live handler holds the claim.
	// A claim abandoned by a crashed handler is taken over once it exceeds
	// the claim lease.
	Claim(ctx context.Context, msg *domain.InboxMessage) error

	// Release drops an unprocessed claim so the event can be retried on
	// redelivery.
	Release(ctx context.Context, id string) error
}
