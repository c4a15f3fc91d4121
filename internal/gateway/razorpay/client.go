// Package razorpay is a client for the payment gateway: order (payment
// session) creation, refunds, and checkout signature verification.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fulfillment/internal/domain"
	"fulfillment/internal/gateway"
)

const gatewayName = "payment"

// Client calls the payment gateway with basic auth. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient creates a payment gateway client.
func NewClient(baseURL, keyID, keySecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: httpClient,
	}
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

type orderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// CreateOrder opens a payment session for amountMinor with immediate
// capture. The gateway's order object is kept in Raw.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency string) (*domain.PaymentSession, error) {
	raw, err := c.post(ctx, "/v1/orders", createOrderRequest{
		Amount:         amountMinor,
		Currency:       currency,
		PaymentCapture: 1,
	})
	if err != nil {
		return nil, err
	}

	var order orderResponse
	if err := json.Unmarshal(raw, &order); err != nil || order.ID == "" {
		return nil, &gateway.UpstreamError{
			Gateway: gatewayName,
			Status:  http.StatusBadGateway,
			Message: "invalid response from payment gateway",
			Err:     err,
		}
	}

	createdAt := time.Now().UTC()
	if order.CreatedAt > 0 {
		createdAt = time.Unix(order.CreatedAt, 0).UTC()
	}

	return &domain.PaymentSession{
		ID:             order.ID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Status:         order.Status,
		PaymentCapture: true,
		CreatedAt:      createdAt,
		Raw:            raw,
	}, nil
}

// Refund returns amountMinor of a captured payment to the customer.
func (c *Client) Refund(ctx context.Context, paymentID string, amountMinor int64) (*domain.Refund, error) {
	raw, err := c.post(ctx, "/v1/payments/"+url.PathEscape(paymentID)+"/refund", map[string]int64{
		"amount": amountMinor,
	})
	if err != nil {
		var upstream *gateway.UpstreamError
		if errors.As(err, &upstream) && alreadyRefunded(upstream) {
			upstream.Err = gateway.ErrAlreadyRefunded
		}
		return nil, err
	}

	var refund domain.Refund
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, &gateway.UpstreamError{
			Gateway: gatewayName,
			Status:  http.StatusBadGateway,
			Message: "invalid response from payment gateway",
			Err:     err,
		}
	}
	return &refund, nil
}

// VerifySignature checks the checkout signature the payment widget hands
// back: hex(HMAC-SHA256(orderID + "|" + paymentID, key secret)).
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, c.keySecret)
}

// VerifySignature is the secret-parameterised form of Client.VerifySignature.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	expected := Sign(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Sign computes the checkout signature for an order/payment pair.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, gateway.Transport(gatewayName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &gateway.UpstreamError{
			Gateway: gatewayName,
			Status:  resp.StatusCode,
			Message: errorDescription(gateway.ReadErrorBody(resp.Body)),
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &gateway.UpstreamError{
			Gateway: gatewayName,
			Status:  http.StatusBadGateway,
			Message: "invalid response from payment gateway",
			Err:     err,
		}
	}
	return raw, nil
}

// alreadyRefunded reports whether a refund was rejected because nothing is
// left to refund, e.g. "The payment has been fully refunded already".
func alreadyRefunded(e *gateway.UpstreamError) bool {
	if e.Status != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "fully refunded") || strings.Contains(msg, "already been refunded")
}

// errorDescription reads {"error":{"code":..., "description":...}}.
func errorDescription(body []byte) string {
	var payload struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error.Description
}
