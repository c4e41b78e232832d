package orders

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

	"checkout/internal/app/orders"
	"checkout/internal/auth"
	"checkout/internal/domain"
)

type stubOrderService struct {
	createFn  func(ctx context.Context, userID string, req *orders.CreateOrderRequest) (*orders.OrderResponse, error)
	getFn     func(ctx context.Context, orderID, userID string) (*orders.OrderResponse, error)
	listFn    func(ctx context.Context, userID string) ([]*orders.OrderResponse, error)
	cancelFn  func(ctx context.Context, orderID, userID string) (*orders.OrderResponse, error)
	advanceFn func(ctx context.Context, orderID string, status domain.OrderStatus) (*orders.OrderResponse, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, userID string, req *orders.CreateOrderRequest) (*orders.OrderResponse, error) {
	return s.createFn(ctx, userID, req)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID, userID string) (*orders.OrderResponse, error) {
	return s.getFn(ctx, orderID, userID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID string) ([]*orders.OrderResponse, error) {
	return s.listFn(ctx, userID)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, orderID, userID string) (*orders.OrderResponse, error) {
	return s.cancelFn(ctx, orderID, userID)
}

func (s *stubOrderService) AdvanceFulfillment(ctx context.Context, orderID string, status domain.OrderStatus) (*orders.OrderResponse, error) {
	return s.advanceFn(ctx, orderID, status)
}

func (s *stubOrderService) ApplyPaymentOutcome(context.Context, domain.Event, []byte) error {
	return nil
}

const testSecret = "test-secret"

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	return signBearer(t, jwt.MapClaims{"userId": userID})
}

func operatorToken(t *testing.T, userID string) string {
	t.Helper()
	return signBearer(t, jwt.MapClaims{"userId": userID, "role": auth.RoleOperator})
}

func signBearer(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serveRequest(t *testing.T, svc orders.OrderService, method, path, body, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	RegisterRoutes(router, svc, testSecret, zap.NewNop())

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(_ context.Context, userID string, req *orders.CreateOrderRequest) (*orders.OrderResponse, error) {
			assert.Equal(t, "user-1", userID)
			require.Len(t, req.Items, 1)
			return &orders.OrderResponse{ID: "order-1", UserID: userID, TotalAmount: 20, Status: "PENDING"}, nil
		},
	}

	body := `{"items":[{"product_id":"p1","quantity":2,"price":10}],"shipping_address":{"city":"Berlin"}}`
	rec := serveRequest(t, svc, http.MethodPost, "/orders", body, bearerToken(t, "user-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp orders.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.ID)
	assert.Equal(t, 20.0, resp.TotalAmount)
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	svc := &stubOrderService{}
	rec := serveRequest(t, svc, http.MethodPost, "/orders", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.NewValidationError("order must contain at least one item"), http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"transition", &domain.TransitionError{Entity: "order", From: "PAID", To: "CANCELLED"}, http.StatusConflict},
		{"version conflict", domain.ErrVersionConflict, http.StatusConflict},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubOrderService{
				cancelFn: func(context.Context, string, string) (*orders.OrderResponse, error) {
					return nil, tt.err
				},
			}
			rec := serveRequest(t, svc, http.MethodPost, "/orders/order-1/cancel", "", bearerToken(t, "user-1"))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListOrdersReturnsEmptyArray(t *testing.T) {
	svc := &stubOrderService{
		listFn: func(context.Context, string) ([]*orders.OrderResponse, error) {
			return nil, nil
		},
	}
	rec := serveRequest(t, svc, http.MethodGet, "/orders", "", bearerToken(t, "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAdvanceFulfillmentEndpoint(t *testing.T) {
	svc := &stubOrderService{
		advanceFn: func(_ context.Context, orderID string, status domain.OrderStatus) (*orders.OrderResponse, error) {
			assert.Equal(t, "order-1", orderID)
			assert.Equal(t, domain.OrderStatusShipped, status)
			return &orders.OrderResponse{ID: orderID, Status: string(status)}, nil
		},
	}
	rec := serveRequest(t, svc, http.MethodPost, "/orders/order-1/fulfillment", `{"status":"SHIPPED"}`, operatorToken(t, "op-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdvanceFulfillmentRequiresOperatorRole(t *testing.T) {
	svc := &stubOrderService{
		advanceFn: func(context.Context, string, domain.OrderStatus) (*orders.OrderResponse, error) {
			t.Fatal("service must not be reached without the operator role")
			return nil, nil
		},
	}
	rec := serveRequest(t, svc, http.MethodPost, "/orders/order-1/fulfillment", `{"status":"SHIPPED"}`, bearerToken(t, "user-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
