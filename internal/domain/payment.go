package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
// FAILED and REFUNDED are terminal.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

type Payment struct {
	ID                 string
	OrderID            string
	UserID             string
	Amount             float64
	Currency           string
	Status             PaymentStatus
	StripePaymentID    string
	StripeClientSecret string
	RefundID           string
	ErrorMessage       string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewPayment(id, orderID, userID string, amount float64, currency string) (*Payment, error) {
	if id == "" || orderID == "" || userID == "" {
		return nil, NewValidationError("payment id, order id and user id are required")
	}
	if amount <= 0 {
		return nil, NewValidationError("payment amount must be positive")
	}
	if currency == "" {
		currency = "usd"
	}
	now := time.Now().UTC()
	return &Payment{
		ID:        id,
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Payment) transitionTo(next PaymentStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "payment", From: string(p.Status), To: string(next)}
	}
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) MarkCompleted() error { return p.transitionTo(PaymentStatusCompleted) }

func (p *Payment) MarkFailed(reason string) error {
	if err := p.transitionTo(PaymentStatusFailed); err != nil {
		return err
	}
	p.ErrorMessage = reason
	return nil
}

func (p *Payment) MarkRefunded(refundID string) error {
	if err := p.transitionTo(PaymentStatusRefunded); err != nil {
		return err
	}
	p.RefundID = refundID
	return nil
}
