package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/auth"
	"checkout/internal/domain"
)

type OrderHandler struct {
	service orders.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(s orders.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateOrder", zap.Error(err))
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateOrder(r.Context(), auth.UserID(r.Context()), &req)
	if err != nil {
		h.respondServiceError(w, err, "creating order")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	res, err := h.service.GetOrder(r.Context(), orderID, auth.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "getting order")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListOrders(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "listing orders")
		return
	}
	if res == nil {
		res = []*orders.OrderResponse{}
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	res, err := h.service.CancelOrder(r.Context(), orderID, auth.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "cancelling order")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) AdvanceFulfillment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req orders.FulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.AdvanceFulfillment(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		h.respondServiceError(w, err, "advancing fulfillment")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) respondServiceError(w http.ResponseWriter, err error, action string) {
	var ve *domain.ValidationError
	var te *domain.TransitionError
	switch {
	case errors.As(err, &ve):
		respondError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, "Order not found", http.StatusNotFound)
	case errors.As(err, &te):
		respondError(w, te.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrVersionConflict):
		respondError(w, "Order was modified concurrently, retry", http.StatusConflict)
	default:
		h.logger.Error("Error "+action, zap.Error(err))
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}
