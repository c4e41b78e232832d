package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderTransitions is the total transition function of the order state
// machine. CANCELLED and DELIVERED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalAmount     float64
	Status          OrderStatus
	ShippingAddress ShippingAddress
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder validates the items, computes the total once and returns a PENDING
// order. The total is never recomputed after this point.
func NewOrder(id, userID string, items []OrderItem, addr ShippingAddress) (*Order, error) {
	if id == "" || userID == "" {
		return nil, NewValidationError("order id and user id are required")
	}
	if len(items) == 0 {
		return nil, NewValidationError("order must contain at least one item")
	}
	var total float64
	for i, item := range items {
		if item.ProductID == "" {
			return nil, NewValidationError("item %d: product id is required", i)
		}
		if item.Quantity < 1 {
			return nil, NewValidationError("item %d: quantity must be at least 1", i)
		}
		if item.Price < 0 {
			return nil, NewValidationError("item %d: price must not be negative", i)
		}
		total += float64(item.Quantity) * item.Price
	}
	// A zero total can never be authorized; the order_created contract and
	// NewPayment both require a positive amount.
	if total <= 0 {
		return nil, NewValidationError("order total must be positive")
	}
	now := time.Now().UTC()
	return &Order{
		ID:              id,
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		Status:          OrderStatusPending,
		ShippingAddress: addr,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (o *Order) transitionTo(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "order", From: string(o.Status), To: string(next)}
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) MarkPaid() error      { return o.transitionTo(OrderStatusPaid) }
func (o *Order) MarkCancelled() error { return o.transitionTo(OrderStatusCancelled) }

// AdvanceFulfillment drives the externally-commanded part of the lifecycle
// (PROCESSING, SHIPPED, DELIVERED).
func (o *Order) AdvanceFulfillment(next OrderStatus) error {
	switch next {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return o.transitionTo(next)
	default:
		return NewValidationError("status %s is not a fulfillment stage", next)
	}
}
