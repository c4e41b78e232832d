package payments

import (
	"time"

	"checkout/internal/domain"
)

type CreateIntentRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type CreateIntentResponse struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret"`
}

type PaymentResponse struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	RefundID     string    `json:"refund_id,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func mapPaymentToResponse(payment *domain.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:           payment.ID,
		OrderID:      payment.OrderID,
		UserID:       payment.UserID,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		Status:       string(payment.Status),
		RefundID:     payment.RefundID,
		ErrorMessage: payment.ErrorMessage,
		CreatedAt:    payment.CreatedAt,
		UpdatedAt:    payment.UpdatedAt,
	}
}
