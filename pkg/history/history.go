// Package history persists the engine's two records: the current schema
// checksum (with the last-applied model) and the append-only migration log
// used for audit and as the source of the previous model on later runs.
//
// The store is a port: the engine and executor depend on the Store
// interface, and the PostgreSQL implementation lives alongside it. Writes
// that must be atomic with a migration run through an Execer, which the
// executor satisfies with its open transaction.
package history

import (
	"context"
	"time"

	"github.com/tablekeeper/tablekeeper/pkg/model"
)

type (
	// Record is one entry of the append-only migration log.
	Record struct {
		// Checksum is the h1 checksum of the model this migration produced.
		Checksum string

		// Statements is the full transactional statement text, in execution
		// order.
		Statements []string

		// AppliedAt is when the migration transaction committed.
		AppliedAt time.Time

		// IndexError records a post-commit concurrent index build failure.
		// The schema changes of this record are committed regardless; a
		// non-empty value means the requested index is missing and the build
		// should be retried independently.
		IndexError string
	}

	// Execer is the write surface the store needs for transactional writes.
	// The executor's open transaction satisfies it.
	Execer interface {
		Exec(ctx context.Context, query string, args ...any) error
	}

	// Store is the persistence port for checksum and migration history.
	Store interface {
		// EnsureBootstrap creates the tracking tables when missing.
		EnsureBootstrap(ctx context.Context) error

		// Checksum returns the currently recorded schema checksum. ok is
		// false when no migration has ever been recorded.
		Checksum(ctx context.Context) (checksum string, ok bool, err error)

		// Model returns the last successfully applied schema model, when
		// available.
		Model(ctx context.Context) (m *model.SchemaModel, ok bool, err error)

		// History returns the most recent migration records, newest first.
		History(ctx context.Context, limit int) ([]Record, error)

		// RecordMigration appends a migration log entry through tx.
		RecordMigration(ctx context.Context, tx Execer, rec *Record) error

		// SaveChecksum replaces the checksum record and stored model through
		// tx, so the replacement commits atomically with the migration.
		SaveChecksum(ctx context.Context, tx Execer, checksum string, m *model.SchemaModel) error

		// FlagIndexFailure marks the newest migration record with a
		// post-commit index build failure. This runs outside the migration
		// transaction, after it has already committed.
		FlagIndexFailure(ctx context.Context, checksum string, indexErr string) error
	}
)
