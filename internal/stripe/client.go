// Package stripe is a minimal client for a Stripe-compatible payment intents
// API. Every money-moving call carries a caller-supplied Idempotency-Key so
// handler retries cannot duplicate financial effects.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
)

type AuthorizeRequest struct {
	Amount   float64
	Currency string
	OrderID  string
	UserID   string
	// IdempotencyKey dedups the authorization at the gateway; the caller
	// keys it by order id.
	IdempotencyKey string
}

type Authorization struct {
	ID           string
	ClientSecret string
}

type Refund struct {
	ID string
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, secretKey string, timeout time.Duration, l *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     l,
	}
}

// Cents converts a dollar amount to the integer minor units the gateway
// expects.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(Cents(req.Amount), 10))
	form.Set("currency", req.Currency)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("metadata[user_id]", req.UserID)

	var resp struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := c.post(ctx, "/v1/payment_intents", req.IdempotencyKey, form, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("Payment intent authorized",
		zap.String("order_id", req.OrderID),
		zap.String("intent_id", resp.ID))
	return &Authorization{ID: resp.ID, ClientSecret: resp.ClientSecret}, nil
}

func (c *Client) Confirm(ctx context.Context, authRef, idempotencyKey string) error {
	path := "/v1/payment_intents/" + url.PathEscape(authRef) + "/confirm"
	if err := c.post(ctx, path, idempotencyKey, url.Values{}, &struct{}{}); err != nil {
		return err
	}
	c.logger.Info("Payment intent confirmed", zap.String("intent_id", authRef))
	return nil
}

func (c *Client) Refund(ctx context.Context, authRef, idempotencyKey string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", authRef)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/refunds", idempotencyKey, form, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("Payment refunded", zap.String("intent_id", authRef), zap.String("refund_id", resp.ID))
	return &Refund{ID: resp.ID}, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are transient; the consumer's retry
		// policy governs what happens next.
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	default:
		return decodeGatewayError(resp.StatusCode, body)
	}
}

func decodeGatewayError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return &domain.GatewayError{
			Code:    strconv.Itoa(status),
			Message: strings.TrimSpace(string(body)),
		}
	}
	return &domain.GatewayError{Code: payload.Error.Code, Message: payload.Error.Message}
}
