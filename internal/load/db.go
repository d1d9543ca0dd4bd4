// Package load persists canonical records into PostgreSQL with
// insert-if-absent semantics keyed on (city, time). The table's primary key
// is the final arbiter of uniqueness, so concurrent city workers sharing the
// pool cannot race their way into duplicate rows.
package load

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx. The
// loader accepts this so the same code works inside or outside a transaction
// and tests can substitute a mock.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
