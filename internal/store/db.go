package store

import (
	"context"
	"database/sql"
)

// DBTX is the interface satisfied by both *sql.DB and *sql.Tx, allowing
// stores to run either directly against the pool or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
