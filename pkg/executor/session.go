package executor

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type (
	// Session defines the database surface the executor needs: a
	// transaction for the main run and autocommit execution for the
	// post-commit concurrent index step.
	Session interface {
		// Begin opens the migration transaction on a dedicated connection,
		// held for the lifetime of the transaction.
		Begin(ctx context.Context) (Tx, error)

		// Exec runs a statement outside any transaction.
		Exec(ctx context.Context, query string, args ...any) error
	}

	// Tx is the executor's view of an open transaction. It also satisfies
	// history.Execer so the history store can write through it.
	Tx interface {
		Exec(ctx context.Context, query string, args ...any) error
		Commit() error
		Rollback() error
	}
)

// NewSession wraps a *sql.DB as a Session. Transactions are pinned to a
// dedicated connection taken from the pool and released on commit/rollback.
func NewSession(db *sql.DB) Session {
	return &dbSession{db: db}
}

type dbSession struct {
	db *sql.DB
}

func (s *dbSession) Begin(ctx context.Context) (Tx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire connection")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	return &dbTx{conn: conn, tx: tx}, nil
}

func (s *dbSession) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

type dbTx struct {
	conn *sql.Conn
	tx   *sql.Tx
}

func (t *dbTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *dbTx) Commit() error {
	err := t.tx.Commit()
	_ = t.conn.Close()
	return err
}

func (t *dbTx) Rollback() error {
	err := t.tx.Rollback()
	_ = t.conn.Close()
	return err
}
