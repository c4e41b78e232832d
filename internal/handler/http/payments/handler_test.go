package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
	"checkout/internal/domain"
)

type stubPaymentService struct {
	createIntentFn func(ctx context.Context, userID string, req *payments.CreateIntentRequest) (*payments.CreateIntentResponse, error)
	confirmFn      func(ctx context.Context, paymentID, userID string) (*payments.PaymentResponse, error)
	getFn          func(ctx context.Context, paymentID, userID string) (*payments.PaymentResponse, error)
	refundFn       func(ctx context.Context, paymentID, userID string) (*payments.PaymentResponse, error)
}

func (s *stubPaymentService) CreateIntent(ctx context.Context, userID string, req *payments.CreateIntentRequest) (*payments.CreateIntentResponse, error) {
	return s.createIntentFn(ctx, userID, req)
}

func (s *stubPaymentService) ConfirmPayment(ctx context.Context, paymentID, userID string) (*payments.PaymentResponse, error) {
	return s.confirmFn(ctx, paymentID, userID)
}

func (s *stubPaymentService) GetPayment(ctx context.Context, paymentID, userID string) (*payments.PaymentResponse, error) {
	return s.getFn(ctx, paymentID, userID)
}

func (s *stubPaymentService) RefundPayment(ctx context.Context, paymentID, userID string) (*payments.PaymentResponse, error) {
	return s.refundFn(ctx, paymentID, userID)
}

func (s *stubPaymentService) HandleOrderCreated(context.Context, *domain.OrderCreatedEvent, []byte) error {
	return nil
}

const testSecret = "test-secret"

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": userID}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serveRequest(t *testing.T, svc payments.PaymentService, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	RegisterRoutes(router, svc, testSecret, zap.NewNop())

	if body == "" {
		body = "{}"
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateIntentEndpoint(t *testing.T) {
	svc := &stubPaymentService{
		createIntentFn: func(_ context.Context, userID string, req *payments.CreateIntentRequest) (*payments.CreateIntentResponse, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "order-1", req.OrderID)
			return &payments.CreateIntentResponse{PaymentID: "pay-1", ClientSecret: "cs_123"}, nil
		},
	}

	rec := serveRequest(t, svc, http.MethodPost, "/payments/create-intent", `{"order_id":"order-1","amount":20}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp payments.CreateIntentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pay-1", resp.PaymentID)
	assert.Equal(t, "cs_123", resp.ClientSecret)
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	svc := &stubPaymentService{
		confirmFn: func(_ context.Context, paymentID, userID string) (*payments.PaymentResponse, error) {
			assert.Equal(t, "pay-1", paymentID)
			assert.Equal(t, "user-1", userID)
			return &payments.PaymentResponse{ID: paymentID, Status: "COMPLETED"}, nil
		},
	}
	rec := serveRequest(t, svc, http.MethodPost, "/payments/confirm/pay-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.NewValidationError("order id is required"), http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"duplicate payment", domain.ErrDuplicatePayment, http.StatusConflict},
		{"transition", &domain.TransitionError{Entity: "payment", From: "FAILED", To: "COMPLETED"}, http.StatusConflict},
		{"gateway decline", &domain.GatewayError{Code: "card_declined", Message: "insufficient funds"}, http.StatusPaymentRequired},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPaymentService{
				confirmFn: func(context.Context, string, string) (*payments.PaymentResponse, error) {
					return nil, tt.err
				},
			}
			rec := serveRequest(t, svc, http.MethodPost, "/payments/confirm/pay-1", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRefundPaymentEndpoint(t *testing.T) {
	svc := &stubPaymentService{
		refundFn: func(_ context.Context, paymentID, _ string) (*payments.PaymentResponse, error) {
			return &payments.PaymentResponse{ID: paymentID, Status: "REFUNDED", RefundID: "re_1"}, nil
		},
	}
	rec := serveRequest(t, svc, http.MethodPost, "/payments/pay-1/refund", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp payments.PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "re_1", resp.RefundID)
}
