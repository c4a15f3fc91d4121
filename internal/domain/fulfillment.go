package domain

import "time"

// FulfillmentStatus represents where a paid order is in the
// pay-then-dispatch sequence.
type FulfillmentStatus string

const (
	FulfillmentStatusSessionCreated FulfillmentStatus = "SESSION_CREATED"
	FulfillmentStatusDispatched     FulfillmentStatus = "DISPATCHED"
	FulfillmentStatusDispatchFailed FulfillmentStatus = "DISPATCH_FAILED"
	FulfillmentStatusRefunded       FulfillmentStatus = "REFUNDED"
)

// Fulfillment is the ledger record of one payment session and what
// happened to it. Rows in DISPATCH_FAILED are refunded by the reconciler.
type Fulfillment struct {
	ID              string
	PaymentOrderID  string
	PaymentID       string
	AmountMinor     int64
	Currency        string
	Status          FulfillmentStatus
	DeliveryOrderID string
	TrackingURL     string
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FulfillmentEvent is published to the message broker on every ledger
// transition.
type FulfillmentEvent struct {
	Type            string            `json:"type"`
	FulfillmentID   string            `json:"fulfillment_id,omitempty"`
	PaymentOrderID  string            `json:"payment_order_id"`
	PaymentID       string            `json:"payment_id,omitempty"`
	AmountMinor     int64             `json:"amount_minor"`
	Currency        string            `json:"currency"`
	Status          FulfillmentStatus `json:"status"`
	DeliveryOrderID string            `json:"delivery_order_id,omitempty"`
	TrackingURL     string            `json:"tracking_url,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// NewFulfillmentEvent snapshots a ledger record as an event.
func NewFulfillmentEvent(eventType string, f *Fulfillment) FulfillmentEvent {
	return FulfillmentEvent{
		Type:            eventType,
		FulfillmentID:   f.ID,
		PaymentOrderID:  f.PaymentOrderID,
		PaymentID:       f.PaymentID,
		AmountMinor:     f.AmountMinor,
		Currency:        f.Currency,
		Status:          f.Status,
		DeliveryOrderID: f.DeliveryOrderID,
		TrackingURL:     f.TrackingURL,
		Reason:          f.FailureReason,
		OccurredAt:      time.Now().UTC(),
	}
}
