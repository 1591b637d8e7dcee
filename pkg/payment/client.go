// Package payment wraps the external payment gateway. The gateway is an
// external collaborator consumed only via create-order and query-order
// calls; settlement happens on its side.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imgtutu/pkg/config"
)

// OrderState as reported by the gateway
type OrderState string

const (
	StatePending OrderState = "pending"
	StatePaid    OrderState = "paid"
	StateFailed  OrderState = "failed"
	StateExpired OrderState = "expired"
)

// CreateOrderResult result of a create-order call
type CreateOrderResult struct {
	PayURL string
}

// Client calls the payment gateway HTTP API.
type Client struct {
	cfg    config.PaymentConfig
	client *http.Client
}

// NewClient creates a payment client from configuration.
func NewClient(cfg config.PaymentConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type createOrderRequest struct {
	OutTradeNo string `json:"out_trade_no"`
	AmountFen  int64  `json:"amount_fen"`
	Subject    string `json:"subject"`
	NotifyURL  string `json:"notify_url,omitempty"`
}

type createOrderResponse struct {
	PayURL string `json:"pay_url"`
	Error  string `json:"error,omitempty"`
}

type queryOrderResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CreateOrder registers an order with the gateway and returns its pay URL.
func (c *Client) CreateOrder(ctx context.Context, orderID string, amountFen int64, subject string) (*CreateOrderResult, error) {
	body := createOrderRequest{
		OutTradeNo: orderID,
		AmountFen:  amountFen,
		Subject:    subject,
		NotifyURL:  c.cfg.NotifyURL,
	}
	var resp createOrderResponse
	if err := c.post(ctx, "/api/order/create", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("payment gateway rejected order: %s", resp.Error)
	}
	if resp.PayURL == "" {
		return nil, fmt.Errorf("payment gateway returned empty pay url")
	}
	return &CreateOrderResult{PayURL: resp.PayURL}, nil
}

// QueryOrder returns the gateway-side state of an order.
func (c *Client) QueryOrder(ctx context.Context, orderID string) (OrderState, error) {
	url := fmt.Sprintf("%s/api/order/status?out_trade_no=%s", strings.TrimRight(c.cfg.BaseURL, "/"), orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query order: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment gateway returned status %d", httpResp.StatusCode)
	}

	var resp queryOrderResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode order status: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("payment gateway error: %s", resp.Error)
	}

	switch OrderState(resp.Status) {
	case StatePending, StatePaid, StateFailed, StateExpired:
		return OrderState(resp.Status), nil
	default:
		return "", fmt.Errorf("unknown order status: %q", resp.Status)
	}
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
