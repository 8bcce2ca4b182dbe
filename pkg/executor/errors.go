package executor

import (
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Every execution-side failure carries the offending SQL text verbatim plus
// the underlying driver error; reports are never a generic "migration
// failed".

// ExecutionError is an underlying database/driver failure during a
// transactional statement. The run is rolled back in full.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("statement failed: %s: %v", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ConstraintViolationError means existing data violates a constraint a
// statement tried to introduce (e.g. NOT NULL over existing NULLs, or a
// narrowed option set still in use). Discovered only at execution time; the
// run is rolled back in full.
type ConstraintViolationError struct {
	SQL string
	Err error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("existing data violates new constraint: %s: %v", e.SQL, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// ConcurrentIndexError is a post-commit concurrent index build failure. The
// committed schema changes stand; the requested index is missing and should
// be retried independently.
type ConcurrentIndexError struct {
	SQL string
	Err error
}

func (e *ConcurrentIndexError) Error() string {
	return fmt.Sprintf("concurrent index build failed after commit: %s: %v", e.SQL, e.Err)
}

func (e *ConcurrentIndexError) Unwrap() error { return e.Err }

// classify wraps a statement failure as a ConstraintViolationError when the
// driver reports an integrity constraint violation (SQLSTATE class 23), and
// as an ExecutionError otherwise.
func classify(sql string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return &ConstraintViolationError{SQL: sql, Err: err}
	}
	return &ExecutionError{SQL: sql, Err: err}
}
