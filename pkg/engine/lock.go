package engine

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// WithAdvisoryLock runs fn while holding a session-level PostgreSQL
// advisory lock. Multiple processes that may start concurrently against one
// database should wrap the whole migration routine in this; the engine
// itself performs no coordination.
func WithAdvisoryLock(ctx context.Context, db *sql.DB, key int64, fn func(ctx context.Context) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire connection for advisory lock")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return errors.Wrap(err, "failed to acquire advisory lock")
	}
	defer func() {
		// The lock is session-scoped; closing the connection releases it
		// even when the unlock itself fails.
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key)
	}()

	return fn(ctx)
}
