// Package porter is a client for the delivery gateway: quotes, order
// creation and order tracking.
package porter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"fulfillment/internal/domain"
	"fulfillment/internal/gateway"
)

const (
	gatewayName  = "delivery"
	apiKeyHeader = "X-API-KEY"
)

// Client calls the delivery gateway. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a delivery gateway client.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// GetQuote requests prices for every vehicle tier between two points.
func (c *Client) GetQuote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResponse, error) {
	var resp domain.QuoteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/get_quote", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateOrder dispatches an order. payload is marshalled as-is, so callers
// may pass a *domain.Order or a raw JSON document.
func (c *Client) CreateOrder(ctx context.Context, payload any) (*domain.DispatchResult, error) {
	var resp domain.DispatchResult
	if err := c.do(ctx, http.MethodPost, "/v1/orders/create", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TrackOrder returns the gateway's order status document untouched.
func (c *Client) TrackOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gateway.Transport(gatewayName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &gateway.UpstreamError{
			Gateway: gatewayName,
			Status:  resp.StatusCode,
			Message: errorMessage(gateway.ReadErrorBody(resp.Body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &gateway.UpstreamError{
			Gateway: gatewayName,
			Status:  http.StatusBadGateway,
			Message: "invalid response from delivery gateway",
			Err:     err,
		}
	}
	return nil
}

// errorMessage pulls "message" (or "error.message") out of an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var plain string
	if err := json.Unmarshal(payload.Error, &plain); err == nil {
		return plain
	}
	return ""
}
