package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both a missing entity and one owned by a different
	// user, so callers cannot probe for existence.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means a concurrent writer committed first. The
	// operation can be retried against the fresh row.
	ErrVersionConflict = errors.New("stale entity version")

	// ErrEventAlreadyProcessed means the inbox already holds a PROCESSED
	// record for the deduplication key. The event must be acknowledged
	// without re-running domain logic.
	ErrEventAlreadyProcessed = errors.New("event already processed")

	// ErrEventInFlight means another consumer currently holds the claim for
	// the deduplication key. The event is redelivered later.
	ErrEventInFlight = errors.New("event claim held by another consumer")

	ErrDuplicatePayment = errors.New("a payment already exists for this order")
)

// ValidationError rejects malformed command input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when a state machine rejects the requested
// move. From and To carry the stored and requested statuses.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// GatewayError is a definitive rejection from the external payment gateway.
// It is recorded in domain state and never retried.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected operation: %s (%s)", e.Message, e.Code)
}

// IsPermanent reports whether err is a definitive failure. Consumers
// acknowledge permanent failures (routing them to the dead-letter topic) and
// leave everything else for redelivery.
func IsPermanent(err error) bool {
	var ve *ValidationError
	var te *TransitionError
	var ge *GatewayError
	return errors.As(err, &ve) || errors.As(err, &te) || errors.As(err, &ge)
}
