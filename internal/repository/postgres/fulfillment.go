package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// FulfillmentRepository is a PostgreSQL implementation of
// repository.FulfillmentRepository.
type FulfillmentRepository struct {
	q Querier
}

// NewFulfillmentRepository creates a new PostgreSQL fulfillment repository.
func NewFulfillmentRepository(db *sql.DB) *FulfillmentRepository {
	return &FulfillmentRepository{q: db}
}

const fulfillmentColumns = `id, payment_order_id, payment_id, amount_minor, currency, status,
		delivery_order_id, tracking_url, failure_reason, created_at, updated_at`

// Upsert inserts or updates the record keyed by payment order id.
// Empty payment, delivery and tracking fields never overwrite stored ones.
func (r *FulfillmentRepository) Upsert(ctx context.Context, f *domain.Fulfillment) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	query := `
		INSERT INTO fulfillments (id, payment_order_id, payment_id, amount_minor, currency, status,
			delivery_order_id, tracking_url, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (payment_order_id) DO UPDATE SET
			payment_id = COALESCE(NULLIF(EXCLUDED.payment_id, ''), fulfillments.payment_id),
			amount_minor = EXCLUDED.amount_minor,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			delivery_order_id = COALESCE(NULLIF(EXCLUDED.delivery_order_id, ''), fulfillments.delivery_order_id),
			tracking_url = COALESCE(NULLIF(EXCLUDED.tracking_url, ''), fulfillments.tracking_url),
			failure_reason = EXCLUDED.failure_reason,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	return r.q.QueryRowContext(ctx, query,
		f.ID,
		f.PaymentOrderID,
		f.PaymentID,
		f.AmountMinor,
		f.Currency,
		f.Status,
		f.DeliveryOrderID,
		f.TrackingURL,
		f.FailureReason,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

// GetByPaymentOrderID retrieves the record for a payment session.
func (r *FulfillmentRepository) GetByPaymentOrderID(ctx context.Context, paymentOrderID string) (*domain.Fulfillment, error) {
	query := `SELECT ` + fulfillmentColumns + ` FROM fulfillments WHERE payment_order_id = $1`

	f, err := scanFulfillment(r.q.QueryRowContext(ctx, query, paymentOrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// ListByStatus returns up to limit records in status, oldest first.
func (r *FulfillmentRepository) ListByStatus(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]*domain.Fulfillment, error) {
	query := `SELECT ` + fulfillmentColumns + `
		FROM fulfillments WHERE status = $1
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.Fulfillment
	for rows.Next() {
		f, err := scanFulfillment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, f)
	}
	return records, rows.Err()
}

// UpdateStatus moves a record to status.
func (r *FulfillmentRepository) UpdateStatus(ctx context.Context, id string, status domain.FulfillmentStatus, reason string) error {
	query := `UPDATE fulfillments SET status = $1, failure_reason = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, status, reason, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanFulfillment(s scanner) (*domain.Fulfillment, error) {
	var f domain.Fulfillment
	err := s.Scan(
		&f.ID,
		&f.PaymentOrderID,
		&f.PaymentID,
		&f.AmountMinor,
		&f.Currency,
		&f.Status,
		&f.DeliveryOrderID,
		&f.TrackingURL,
		&f.FailureReason,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
