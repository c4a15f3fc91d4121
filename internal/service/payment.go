package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
	"fulfillment/internal/events"
)

// CheckoutRequest contains the parameters for opening a payment session.
type CheckoutRequest struct {
	Amount   decimal.Decimal // major units
	Currency string
}

// CreatePaymentSession opens a payment session at the payment gateway for
// the cart total. The session is remembered until verify consumes it.
func (s *FulfillmentService) CreatePaymentSession(ctx context.Context, req CheckoutRequest) (*domain.PaymentSession, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	amountMinor := domain.ToMinorUnits(req.Amount)
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	session, err := s.payment.CreateOrder(ctx, amountMinor, currency)
	if err != nil {
		return nil, err
	}

	// Without a stored session verify can never dispatch, so fail before
	// the customer is asked to pay.
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save payment session: %w", err)
	}

	s.recordOutcome(ctx, events.PaymentSessionCreated, &domain.Fulfillment{
		PaymentOrderID: session.ID,
		AmountMinor:    session.Amount,
		Currency:       session.Currency,
		Status:         domain.FulfillmentStatusSessionCreated,
	})

	s.log.Info("payment session created",
		"payment_order_id", session.ID,
		"amount_minor", session.Amount,
		"currency", session.Currency,
	)
	return session, nil
}

// VerifyRequest contains the storefront's payment outcome and the order
// to dispatch once the payment is confirmed.
type VerifyRequest struct {
	Success        bool
	OrderDetails   json.RawMessage
	PaymentOrderID string
	PaymentID      string
	Signature      string
}

// VerifyAndDispatch confirms a payment server-side and dispatches the
// order. A reported failure is rejected before any gateway or store is
// touched. If dispatch fails after the payment is confirmed, the ledger
// marks the payment for refund by the Reconciler.
func (s *FulfillmentService) VerifyAndDispatch(ctx context.Context, req VerifyRequest) (*domain.DispatchResult, error) {
	if !req.Success {
		return nil, ErrPaymentFailed
	}

	if !s.payment.VerifySignature(req.PaymentOrderID, req.PaymentID, req.Signature) {
		s.log.Warn("payment signature rejected",
			"payment_order_id", req.PaymentOrderID,
			"payment_id", req.PaymentID,
		)
		return nil, ErrPaymentUnverified
	}

	details := bytes.TrimSpace(req.OrderDetails)
	if len(details) == 0 || bytes.Equal(details, []byte("null")) {
		return nil, ErrMissingOrderDetails
	}

	session, err := s.sessions.Consume(ctx, req.PaymentOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	record := &domain.Fulfillment{
		PaymentOrderID: session.ID,
		PaymentID:      req.PaymentID,
		AmountMinor:    session.Amount,
		Currency:       session.Currency,
	}

	result, err := s.delivery.CreateOrder(ctx, json.RawMessage(details))
	if err != nil {
		record.Status = domain.FulfillmentStatusDispatchFailed
		record.FailureReason = err.Error()
		s.recordOutcome(ctx, events.FulfillmentDispatchFailed, record)

		s.log.Error("dispatch failed after payment",
			"payment_order_id", record.PaymentOrderID,
			"payment_id", record.PaymentID,
			"error", err,
		)
		return nil, err
	}

	record.Status = domain.FulfillmentStatusDispatched
	record.DeliveryOrderID = result.OrderID
	record.TrackingURL = result.TrackingURL
	s.recordOutcome(ctx, events.FulfillmentDispatched, record)

	return result, nil
}
