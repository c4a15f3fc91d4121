package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS fulfillments (
	id                TEXT PRIMARY KEY,
	payment_order_id  TEXT NOT NULL UNIQUE,
	payment_id        TEXT NOT NULL DEFAULT '',
	amount_minor      BIGINT NOT NULL,
	currency          TEXT NOT NULL,
	status            TEXT NOT NULL,
	delivery_order_id TEXT NOT NULL DEFAULT '',
	tracking_url      TEXT NOT NULL DEFAULT '',
	failure_reason    TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS fulfillments_status_updated_idx
	ON fulfillments (status, updated_at);
`

// EnsureSchema creates the ledger table if it does not exist yet.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
