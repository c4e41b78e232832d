package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
	"checkout/internal/auth"
	"checkout/internal/domain"
)

// 402 is reserved for definitive gateway declines so clients can tell a
// declined card from an unavailable backend.
const statusPaymentRequired = http.StatusPaymentRequired

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req payments.CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateIntent", zap.Error(err))
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateIntent(r.Context(), auth.UserID(r.Context()), &req)
	if err != nil {
		h.respondServiceError(w, err, "creating payment intent")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	res, err := h.service.ConfirmPayment(r.Context(), paymentID, auth.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "confirming payment")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	res, err := h.service.GetPayment(r.Context(), paymentID, auth.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "getting payment")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	res, err := h.service.RefundPayment(r.Context(), paymentID, auth.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "refunding payment")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) respondServiceError(w http.ResponseWriter, err error, action string) {
	var ve *domain.ValidationError
	var te *domain.TransitionError
	var ge *domain.GatewayError
	switch {
	case errors.As(err, &ve):
		respondError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, "Payment not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrDuplicatePayment):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &te):
		respondError(w, te.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrVersionConflict):
		respondError(w, "Payment was modified concurrently, retry", http.StatusConflict)
	case errors.As(err, &ge):
		respondError(w, ge.Message, statusPaymentRequired)
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
