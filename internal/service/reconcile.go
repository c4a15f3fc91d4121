package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fulfillment/internal/domain"
	"fulfillment/internal/events"
	"fulfillment/internal/gateway"
	"fulfillment/internal/repository"
)

// DefaultReconcileBatch is how many failed dispatches one pass refunds.
const DefaultReconcileBatch = 20

// Reconciler refunds payments whose order could not be dispatched.
type Reconciler struct {
	ledger   repository.FulfillmentRepository
	payment  PaymentGateway
	events   events.Publisher
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// NewReconciler creates a Reconciler. An interval of zero disables Run.
func NewReconciler(ledger repository.FulfillmentRepository, payment PaymentGateway, publisher events.Publisher, interval time.Duration, batch int, log *slog.Logger) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if batch <= 0 {
		batch = DefaultReconcileBatch
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		ledger:   ledger,
		payment:  payment,
		events:   publisher,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

// Run reconciles every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.log.Info("reconciler disabled")
		return nil
	}

	r.log.Info("reconciler started", "interval", r.interval.String(), "batch", r.batch)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.log.Error("reconcile pass failed", "error", err)
			}
		}
	}
}

// ReconcileOnce refunds one batch of failed dispatches and returns how
// many were refunded. A row that cannot be refunded stays DISPATCH_FAILED
// with its updated_at bumped, so it moves behind newer rows and is retried
// once the rest of the backlog has had a turn.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	records, err := r.ledger.ListByStatus(ctx, domain.FulfillmentStatusDispatchFailed, r.batch)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, f := range records {
		if ctx.Err() != nil {
			return refunded, ctx.Err()
		}

		if f.PaymentID == "" {
			r.log.Warn("failed dispatch has no payment id, skipping", "fulfillment_id", f.ID)
			r.requeue(ctx, f, f.FailureReason)
			continue
		}

		refund, err := r.payment.Refund(ctx, f.PaymentID, f.AmountMinor)
		switch {
		case errors.Is(err, gateway.ErrAlreadyRefunded):
			r.log.Info("payment was already refunded", "fulfillment_id", f.ID, "payment_id", f.PaymentID)
			refund = &domain.Refund{PaymentID: f.PaymentID, Amount: f.AmountMinor}
		case err != nil:
			r.log.Error("refund failed",
				"fulfillment_id", f.ID,
				"payment_id", f.PaymentID,
				"error", err,
			)
			r.requeue(ctx, f, "refund failed: "+err.Error())
			continue
		}

		if err := r.ledger.UpdateStatus(ctx, f.ID, domain.FulfillmentStatusRefunded, f.FailureReason); err != nil {
			r.log.Error("failed to mark fulfillment refunded",
				"fulfillment_id", f.ID,
				"refund_id", refund.ID,
				"error", err,
			)
			continue
		}

		f.Status = domain.FulfillmentStatusRefunded
		if err := r.events.Publish(ctx, events.PaymentRefunded, domain.NewFulfillmentEvent(events.PaymentRefunded, f)); err != nil {
			r.log.Error("failed to publish refund event", "fulfillment_id", f.ID, "error", err)
		}

		r.log.Info("payment refunded",
			"fulfillment_id", f.ID,
			"payment_id", f.PaymentID,
			"refund_id", refund.ID,
			"amount_minor", f.AmountMinor,
		)
		refunded++
	}

	return refunded, nil
}

// requeue rewrites a row as DISPATCH_FAILED, which moves it to the back of
// the oldest-first queue.
func (r *Reconciler) requeue(ctx context.Context, f *domain.Fulfillment, reason string) {
	if err := r.ledger.UpdateStatus(ctx, f.ID, domain.FulfillmentStatusDispatchFailed, reason); err != nil {
		r.log.Error("failed to requeue fulfillment", "fulfillment_id", f.ID, "error", err)
	}
}
