// Package executor applies a generated DDL plan to the target database.
//
// The transactional part of a plan runs sequentially inside one transaction
// on a dedicated connection; the first statement failure aborts the run with
// a full rollback, leaving the database exactly as it was. On success the
// migration record and the new checksum/model are written through the same
// transaction, so history and schema commit atomically. The post-commit part
// (concurrent index builds) then runs sequentially outside any transaction;
// a failure there is reported distinctly and does not undo the committed
// schema changes.
package executor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/ddl"
	"github.com/tablekeeper/tablekeeper/pkg/history"
	"github.com/tablekeeper/tablekeeper/pkg/model"
)

// Status is the outcome of a migration run.
type Status string

const (
	// StatusSuccess means the transaction committed.
	StatusSuccess Status = "success"

	// StatusSkipped means the checksum matched and nothing executed.
	StatusSkipped Status = "skipped"

	// StatusFailed means a statement failed and the run was rolled back.
	StatusFailed Status = "failed"
)

type (
	// Executor runs migration plans.
	Executor struct {
		sess  Session
		store history.Store
	}

	// Config contains the collaborators an Executor needs.
	Config struct {
		// Session provides the target database connection.
		Session Session

		// Store receives the migration record and checksum on success.
		Store history.Store
	}

	// Result describes one execution attempt.
	Result struct {
		// Status is the result status of the run.
		Status Status

		// Applied holds the committed transactional statement texts, in
		// order. Empty unless Status is success.
		Applied []string

		// Error is the classified statement failure when Status is failed.
		Error error

		// IndexError is set when a post-commit concurrent index build
		// failed. The schema itself committed; Status remains success.
		IndexError error

		// Duration covers the whole attempt including the post-commit step.
		Duration time.Duration
	}
)

// New creates an Executor.
func New(cfg Config) *Executor {
	return &Executor{sess: cfg.Session, store: cfg.Store}
}

// Execute applies the plan. The returned Result always describes the
// attempt; the error mirrors Result.Error for failed runs so callers can
// propagate it directly.
func (e *Executor) Execute(ctx context.Context, plan *ddl.Plan, m *model.SchemaModel, checksum string) (*Result, error) {
	start := time.Now()

	tx, err := e.sess.Begin(ctx)
	if err != nil {
		failure := errors.Wrap(err, "failed to open migration transaction")
		return &Result{Status: StatusFailed, Error: failure, Duration: time.Since(start)}, failure
	}

	for _, stmt := range plan.Statements {
		if err := tx.Exec(ctx, stmt.SQL); err != nil {
			failure := classify(stmt.SQL, err)
			_ = tx.Rollback()
			return &Result{Status: StatusFailed, Error: failure, Duration: time.Since(start)}, failure
		}
	}

	// History and checksum ride the migration transaction: a successful run
	// replaces them atomically, a failed run leaves them untouched.
	rec := &history.Record{
		Checksum:   checksum,
		Statements: plan.SQL(),
		AppliedAt:  start.UTC(),
	}
	if err := e.store.RecordMigration(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return &Result{Status: StatusFailed, Error: err, Duration: time.Since(start)}, err
	}
	if err := e.store.SaveChecksum(ctx, tx, checksum, m); err != nil {
		_ = tx.Rollback()
		return &Result{Status: StatusFailed, Error: err, Duration: time.Since(start)}, err
	}

	if err := tx.Commit(); err != nil {
		failure := errors.Wrap(err, "failed to commit migration transaction")
		return &Result{Status: StatusFailed, Error: failure, Duration: time.Since(start)}, failure
	}

	result := &Result{
		Status:  StatusSuccess,
		Applied: plan.SQL(),
	}

	// Concurrent index builds run after commit, outside any transaction, so
	// they do not hold locks blocking application traffic. A failure here is
	// non-fatal to the committed schema but is flagged in the history log.
	for _, stmt := range plan.PostCommit {
		if err := e.sess.Exec(ctx, stmt.SQL); err != nil {
			idxErr := &ConcurrentIndexError{SQL: stmt.SQL, Err: err}
			result.IndexError = idxErr
			_ = e.store.FlagIndexFailure(ctx, checksum, idxErr.Error())
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
