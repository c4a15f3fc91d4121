// Package gateway holds what the vendor HTTP clients share: the error type
// that carries the vendor's status and message, and the instrumented
// HTTP client.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// DefaultMessage is reported when the gateway gave no usable message.
const DefaultMessage = "Internal Server Error"

// ErrAlreadyRefunded marks a refund the payment gateway rejected because
// the payment was refunded earlier.
var ErrAlreadyRefunded = errors.New("payment already refunded")

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// UpstreamError is a failed call to a vendor gateway. Status is the
// gateway's HTTP status, or 0 when no response was received.
type UpstreamError struct {
	Gateway string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway: %v", e.Gateway, e.Err)
	}
	return fmt.Sprintf("%s gateway: status %d: %s", e.Gateway, e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status to relay to our caller. A call that timed out
// before any response is reported as 504.
func (e *UpstreamError) HTTPStatus() int {
	if e.Status == 0 && e.timedOut() {
		return http.StatusGatewayTimeout
	}
	if e.Status < 400 || e.Status > 599 {
		return http.StatusInternalServerError
	}
	return e.Status
}

func (e *UpstreamError) timedOut() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// PublicMessage is the message to relay to our caller.
func (e *UpstreamError) PublicMessage() string {
	if e.Message == "" {
		if e.HTTPStatus() == http.StatusGatewayTimeout {
			return "Gateway Timeout"
		}
		return DefaultMessage
	}
	return e.Message
}

// Transport wraps an error that happened before a response arrived.
func Transport(gateway string, err error) *UpstreamError {
	return &UpstreamError{Gateway: gateway, Err: err}
}

// ReadErrorBody reads a bounded error body for message extraction.
func ReadErrorBody(r io.Reader) []byte {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return body
}

// NewHTTPClient returns an http.Client whose calls show up as external
// segments of the New Relic transaction carried by the request context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newrelic.NewRoundTripper(http.DefaultTransport),
	}
}
