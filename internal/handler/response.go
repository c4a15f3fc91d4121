package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment/internal/gateway"
	"fulfillment/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(mapErrorToHTTPStatus(err), ErrorResponse{Message: errorMessage(err)})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service and gateway errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var upstream *gateway.UpstreamError

	switch {
	// Gateway failures keep the vendor's status
	case errors.As(err, &upstream):
		return upstream.HTTPStatus()

	// Not found errors
	case errors.Is(err, service.ErrVehicleUnavailable):
		return http.StatusNotFound

	// Validation and rejected payments - Bad Request
	case errors.Is(err, service.ErrPaymentFailed),
		errors.Is(err, service.ErrPaymentUnverified),
		errors.Is(err, service.ErrInvalidDropLocation),
		errors.Is(err, service.ErrMissingDropDetails),
		errors.Is(err, service.ErrMissingOrderID),
		errors.Is(err, service.ErrMissingOrderDetails),
		errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the message safe to show the storefront.
func errorMessage(err error) string {
	var upstream *gateway.UpstreamError

	switch {
	case errors.As(err, &upstream):
		return upstream.PublicMessage()
	case errors.Is(err, service.ErrPaymentFailed):
		return "Payment failed"
	case mapErrorToHTTPStatus(err) == http.StatusInternalServerError:
		return gateway.DefaultMessage
	case errors.Is(err, context.DeadlineExceeded):
		return "Gateway Timeout"
	default:
		return err.Error()
	}
}
