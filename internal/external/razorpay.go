package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

// razorpayAPIBase is the production Razorpay REST API base URL.
// Overridable in tests via config.RazorpayConfig.BaseURL.
const razorpayAPIBase = "https://api.razorpay.com"

// razorpayOrderRequest is the body for POST /v1/orders. Amount is in the
// currency's minor unit.
type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// razorpayOrderResponse is the subset of the order entity we consume.
type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// razorpayErrorResponse is Razorpay's error envelope.
type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// RazorpayHTTPClient implements PaymentProviderClient against the Razorpay
// Orders API. Requests authenticate with HTTP basic auth using the key
// pair; all calls go through BaseClient.
type RazorpayHTTPClient struct {
	base      *BaseClient
	keyID     string
	keySecret string
	baseURL   string
	logger    *slog.Logger
}

// NewRazorpayClient creates a RazorpayHTTPClient from the gateway
// configuration. The httpClient timeout should cover order creation
// (a few seconds is plenty).
func NewRazorpayClient(httpClient *http.Client, cfg config.RazorpayConfig, logger *slog.Logger) *RazorpayHTTPClient {
	base := NewBaseClient(
		httpClient,
		"razorpay",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"MealTrack/1.0",
	)
	return NewRazorpayClientWithBase(base, cfg, logger)
}

// NewRazorpayClientWithBase creates a RazorpayHTTPClient with a
// caller-provided BaseClient. Tests use this to disable retries and point
// at an httptest server.
func NewRazorpayClientWithBase(base *BaseClient, cfg config.RazorpayConfig, logger *slog.Logger) *RazorpayHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = razorpayAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RazorpayHTTPClient{
		base:      base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret.Unmask(),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// CreateOrder registers a checkout order and returns Razorpay's order ID.
func (c *RazorpayHTTPClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (string, error) {
	bodyBytes, err := json.Marshal(razorpayOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize order request",
			err,
		)
	}

	url := c.baseURL + "/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create order request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	c.logger.InfoContext(ctx, "creating payment order",
		"amount", amount,
		"currency", currency,
		"receipt", receipt,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError("CreateOrder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(resp, "CreateOrder")
	}

	var orderResp razorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamPayment,
			"failed to decode order response",
			err,
		)
	}
	if orderResp.ID == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamPayment,
			"gateway returned an empty order ID",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "payment order created",
		"order_id", orderResp.ID,
		"status", orderResp.Status,
	)

	return orderResp.ID, nil
}

// handleErrorResponse logs the gateway's error body and maps it to an
// AppError. All gateway-side failures surface as upstream_payment.
func (c *RazorpayHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var gwErr razorpayErrorResponse
	_ = json.Unmarshal(bodyBytes, &gwErr)

	c.logger.Error("payment gateway error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"gateway_code", gwErr.Error.Code,
		"gateway_description", gwErr.Error.Description,
	)

	msg := gwErr.Error.Description
	if msg == "" {
		msg = fmt.Sprintf("gateway returned %d", resp.StatusCode)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamPayment,
		fmt.Sprintf("%s failed: %s", operation, msg),
		fmt.Errorf("razorpay %s returned %d: %s", operation, resp.StatusCode, string(bodyBytes)),
	)
}

// wrapError preserves the code of AppErrors coming out of BaseClient and
// tags everything else as a payment upstream failure.
func (c *RazorpayHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("razorpay %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamPayment,
		fmt.Sprintf("razorpay %s failed", operation),
		err,
	)
}

// Compile-time interface compliance check.
var _ PaymentProviderClient = (*RazorpayHTTPClient)(nil)
