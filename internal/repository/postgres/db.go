package postgres

import (
	"context"
	"database/sql"
)

// Querier is the part of *sql.DB the ledger and the schema bootstrap use.
// Repository tests hand in a go-sqlmock connection instead.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var _ Querier = (*sql.DB)(nil)

// scanner reads one ledger row from either *sql.Row or *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
