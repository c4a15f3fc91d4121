package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
	"fulfillment/internal/gateway"
	"fulfillment/internal/service"
)

// FulfillmentHandler handles the storefront's quote, order, checkout and
// verify requests.
type FulfillmentHandler struct {
	fulfillmentService *service.FulfillmentService
	log                *slog.Logger
}

// NewFulfillmentHandler creates a new FulfillmentHandler.
func NewFulfillmentHandler(fulfillmentService *service.FulfillmentService, log *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{
		fulfillmentService: fulfillmentService,
		log:                log,
	}
}

// QuoteRequest is the HTTP request body for a delivery quote.
type QuoteRequest struct {
	DropDetails domain.DropDetails `json:"drop_details"`
	Customer    domain.Customer    `json:"customer"`
}

// CreateOrderRequest is the HTTP request body for dispatching an order.
type CreateOrderRequest struct {
	DropDetails          domain.DropDetails `json:"drop_details"`
	Customer             domain.Customer    `json:"customer"`
	AdditionalComments   string             `json:"additional_comments,omitempty"`
	DeliveryInstructions json.RawMessage    `json:"delivery_instructions,omitempty"`
}

// CreateOrderResponse is the HTTP response for a dispatched order.
type CreateOrderResponse struct {
	Message     string `json:"message"`
	OrderID     string `json:"order_id"`
	TrackingURL string `json:"tracking_url"`
}

// CheckoutRequest is the HTTP request body for opening a payment session.
type CheckoutRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// VerifyRequest is the HTTP request body sent after the payment widget
// completes.
type VerifyRequest struct {
	Success           bool            `json:"success"`
	OrderDetails      json.RawMessage `json:"orderDetails"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	RazorpaySignature string          `json:"razorpay_signature"`
}

// VerifyResponse is the HTTP response for verify.
type VerifyResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderID     string `json:"order_id,omitempty"`
	TrackingURL string `json:"tracking_url,omitempty"`
}

// GetQuote handles POST /api/porter/get_quote
func (h *FulfillmentHandler) GetQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	quote, err := h.fulfillmentService.GetQuote(c.Request.Context(), service.QuoteRequest{
		Drop:     req.DropDetails,
		Customer: req.Customer,
	})
	if err != nil {
		h.logFailure("failed to fetch delivery quote", err)
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, quote)
}

// CreateOrder handles POST /api/porter/create_order
func (h *FulfillmentHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	order, err := h.fulfillmentService.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		Drop:                 req.DropDetails,
		Customer:             req.Customer,
		AdditionalComments:   req.AdditionalComments,
		DeliveryInstructions: req.DeliveryInstructions,
	})
	if err != nil {
		h.logFailure("failed to place delivery order", err)
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CreateOrderResponse{
		Message:     domain.OrderPlacedMessage,
		OrderID:     order.OrderID,
		TrackingURL: order.TrackingURL,
	})
}

// TrackOrder handles GET /api/porter/track_order/:order_id
func (h *FulfillmentHandler) TrackOrder(c *gin.Context) {
	payload, err := h.fulfillmentService.TrackOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.logFailure("failed to track order", err)
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// Checkout handles POST /api/porter/checkout
func (h *FulfillmentHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	session, err := h.fulfillmentService.CreatePaymentSession(c.Request.Context(), service.CheckoutRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		h.logFailure("failed to create payment session", err)
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", session.Raw)
}

// Verify handles POST /api/porter/verify
func (h *FulfillmentHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, VerifyResponse{Success: false, Message: "invalid request body"})
		return
	}

	result, err := h.fulfillmentService.VerifyAndDispatch(c.Request.Context(), service.VerifyRequest{
		Success:        req.Success,
		OrderDetails:   req.OrderDetails,
		PaymentOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
	})
	if err != nil {
		h.logFailure("failed to verify payment and dispatch", err)
		_ = c.Error(err)
		c.JSON(mapErrorToHTTPStatus(err), VerifyResponse{Success: false, Message: errorMessage(err)})
		return
	}

	respondJSON(c, http.StatusOK, VerifyResponse{
		Success:     true,
		Message:     domain.OrderPlacedMessage,
		OrderID:     result.OrderID,
		TrackingURL: result.TrackingURL,
	})
}

// logFailure logs gateway failures with the vendor's status and anything
// unexpected at error level; client mistakes are left to the access log.
func (h *FulfillmentHandler) logFailure(msg string, err error) {
	var upstream *gateway.UpstreamError
	switch {
	case errors.As(err, &upstream):
		h.log.Error(msg,
			"gateway", upstream.Gateway,
			"upstream_status", upstream.Status,
			"error", err,
		)
	case mapErrorToHTTPStatus(err) >= http.StatusInternalServerError:
		h.log.Error(msg, "error", err)
	default:
		h.log.Debug(msg, "error", err)
	}
}
