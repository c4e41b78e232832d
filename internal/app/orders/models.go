package orders

import (
	"time"

	"checkout/internal/domain"
)

type CreateOrderRequest struct {
	Items           []domain.OrderItem     `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
}

type FulfillmentRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Items           []domain.OrderItem     `json:"items"`
	TotalAmount     float64                `json:"total_amount"`
	Status          string                 `json:"status"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           order.Items,
		TotalAmount:     order.TotalAmount,
		Status:          string(order.Status),
		ShippingAddress: order.ShippingAddress,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func mapOrdersToResponse(orders []*domain.Order) []*OrderResponse {
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = mapOrderToResponse(order)
	}
	return responses
}
