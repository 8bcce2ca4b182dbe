package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/model"
)

// Default tracking table names. Both live next to the application tables in
// the target database.
const (
	DefaultMigrationsTable = "tablekeeper_migrations"
	DefaultChecksumTable   = "tablekeeper_checksum"
)

type (
	// Postgres is the PostgreSQL-backed Store implementation.
	Postgres struct {
		db              *sql.DB
		migrationsTable string
		checksumTable   string
	}

	// PostgresConfig overrides the tracking table names.
	PostgresConfig struct {
		MigrationsTable string
		ChecksumTable   string
	}
)

// NewPostgres creates a Store backed by the given database using the default
// table names.
func NewPostgres(db *sql.DB) *Postgres {
	return NewPostgresWithConfig(db, PostgresConfig{})
}

// NewPostgresWithConfig creates a Store with custom tracking table names.
func NewPostgresWithConfig(db *sql.DB, cfg PostgresConfig) *Postgres {
	if cfg.MigrationsTable == "" {
		cfg.MigrationsTable = DefaultMigrationsTable
	}
	if cfg.ChecksumTable == "" {
		cfg.ChecksumTable = DefaultChecksumTable
	}
	return &Postgres{
		db:              db,
		migrationsTable: cfg.MigrationsTable,
		checksumTable:   cfg.ChecksumTable,
	}
}

// EnsureBootstrap creates the migration log and checksum tables when they do
// not exist yet. The checksum table is constrained to a single row.
func (p *Postgres) EnsureBootstrap(ctx context.Context) error {
	migrations := `
CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(p.migrationsTable) + ` (
    id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    checksum text NOT NULL,
    statements text[] NOT NULL,
    applied_at timestamptz NOT NULL,
    index_error text
)`
	if _, err := p.db.ExecContext(ctx, migrations); err != nil {
		return errors.Wrapf(err, "failed to bootstrap %s", p.migrationsTable)
	}

	checksum := `
CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(p.checksumTable) + ` (
    singleton boolean PRIMARY KEY DEFAULT true CHECK (singleton),
    checksum text NOT NULL,
    model jsonb NOT NULL,
    updated_at timestamptz NOT NULL
)`
	if _, err := p.db.ExecContext(ctx, checksum); err != nil {
		return errors.Wrapf(err, "failed to bootstrap %s", p.checksumTable)
	}

	return nil
}

func (p *Postgres) Checksum(ctx context.Context) (string, bool, error) {
	var checksum string
	err := p.db.QueryRowContext(ctx,
		`SELECT checksum FROM `+pq.QuoteIdentifier(p.checksumTable)+` WHERE singleton`,
	).Scan(&checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to read schema checksum")
	}
	return checksum, true, nil
}

func (p *Postgres) Model(ctx context.Context) (*model.SchemaModel, bool, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT model FROM `+pq.QuoteIdentifier(p.checksumTable)+` WHERE singleton`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read stored schema model")
	}

	m, err := model.UnmarshalModel(data)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (p *Postgres) History(ctx context.Context, limit int) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT checksum, statements, applied_at, COALESCE(index_error, '')
		 FROM `+pq.QuoteIdentifier(p.migrationsTable)+`
		 ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query migration history")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Checksum, pq.Array(&rec.Statements), &rec.AppliedAt, &rec.IndexError); err != nil {
			return nil, errors.Wrap(err, "failed to scan migration record")
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to read migration history")
}

func (p *Postgres) RecordMigration(ctx context.Context, tx Execer, rec *Record) error {
	err := tx.Exec(ctx,
		`INSERT INTO `+pq.QuoteIdentifier(p.migrationsTable)+` (checksum, statements, applied_at)
		 VALUES ($1, $2, $3)`,
		rec.Checksum, pq.Array(rec.Statements), rec.AppliedAt)
	return errors.Wrap(err, "failed to record migration")
}

func (p *Postgres) SaveChecksum(ctx context.Context, tx Execer, checksum string, m *model.SchemaModel) error {
	data, err := m.CanonicalJSON()
	if err != nil {
		return err
	}

	err = tx.Exec(ctx,
		`INSERT INTO `+pq.QuoteIdentifier(p.checksumTable)+` (singleton, checksum, model, updated_at)
		 VALUES (true, $1, $2, $3)
		 ON CONFLICT (singleton) DO UPDATE
		 SET checksum = EXCLUDED.checksum, model = EXCLUDED.model, updated_at = EXCLUDED.updated_at`,
		checksum, data, time.Now().UTC())
	return errors.Wrap(err, "failed to save schema checksum")
}

func (p *Postgres) FlagIndexFailure(ctx context.Context, checksum string, indexErr string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE `+pq.QuoteIdentifier(p.migrationsTable)+`
		 SET index_error = $2
		 WHERE id = (SELECT max(id) FROM `+pq.QuoteIdentifier(p.migrationsTable)+` WHERE checksum = $1)`,
		checksum, indexErr)
	return errors.Wrap(err, "failed to flag index failure")
}

var _ Store = (*Postgres)(nil)
