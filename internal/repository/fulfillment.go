package repository

import (
	"context"

	"fulfillment/internal/domain"
)

// FulfillmentRepository defines the persistence operations for the
// fulfillment ledger.
type FulfillmentRepository interface {
	// Upsert inserts a record, or updates the record with the same
	// payment order id. ID and CreatedAt are filled in on insert.
	Upsert(ctx context.Context, f *domain.Fulfillment) error

	// GetByPaymentOrderID retrieves the record for a payment session.
	GetByPaymentOrderID(ctx context.Context, paymentOrderID string) (*domain.Fulfillment, error)

	// ListByStatus returns up to limit records in status, oldest first.
	ListByStatus(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]*domain.Fulfillment, error)

	// UpdateStatus moves a record to status with an optional reason.
	UpdateStatus(ctx context.Context, id string, status domain.FulfillmentStatus, reason string) error
}
