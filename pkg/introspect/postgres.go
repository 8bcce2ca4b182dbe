// Package introspect reads the live PostgreSQL catalog into a schema model.
//
// Introspection is the cold-start fallback: when the history store has no
// stored model (engine pointed at a pre-existing database), the differ
// compares against the introspected model instead, matching by name since
// the catalog carries no stable identities.
//
// The recovered model is structural: tables, columns, nullability and view
// definitions. Column defaults and option constraints are not recovered;
// reconciling them against the desired model re-emits their (idempotent)
// ALTER statements. Secondary indexes are likewise left to the generator's
// IF NOT EXISTS guards.
package introspect

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/model"
)

// Postgres introspects a PostgreSQL database.
type Postgres struct {
	db *sql.DB

	// exclude lists table names that are engine infrastructure (history and
	// checksum tables) and must not appear in the recovered model.
	exclude map[string]struct{}
}

// NewPostgres creates an introspector. Excluded names are typically the
// engine's own tracking tables.
func NewPostgres(db *sql.DB, excludeTables ...string) *Postgres {
	exclude := make(map[string]struct{}, len(excludeTables))
	for _, name := range excludeTables {
		exclude[name] = struct{}{}
	}
	return &Postgres{db: db, exclude: exclude}
}

// Introspect reads the public schema into a SchemaModel. Tables and fields
// carry no StableIDs; callers must diff the result with name matching.
func (p *Postgres) Introspect(ctx context.Context) (*model.SchemaModel, error) {
	m := &model.SchemaModel{}

	tables, err := p.introspectTables(ctx)
	if err != nil {
		return nil, err
	}
	m.Tables = tables

	views, err := p.introspectViews(ctx)
	if err != nil {
		return nil, err
	}
	m.Views = views

	return m, nil
}

func (p *Postgres) introspectTables(ctx context.Context) ([]model.TableSpec, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan table name")
		}
		if _, skip := p.exclude[name]; skip {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read tables")
	}

	tables := make([]model.TableSpec, 0, len(names))
	for _, name := range names {
		fields, err := p.introspectColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, model.TableSpec{Name: name, Fields: fields})
	}
	return tables, nil
}

func (p *Postgres) introspectColumns(ctx context.Context, tableName string) ([]model.FieldSpec, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query columns of %s", tableName)
	}
	defer rows.Close()

	var fields []model.FieldSpec
	for rows.Next() {
		var name, dataType, udtName, nullable string
		if err := rows.Scan(&name, &dataType, &udtName, &nullable); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column of %s", tableName)
		}

		// Columns of catalog types outside the field type catalog (uuid,
		// bytea, inet, ...) are not managed by this engine. Leaving them out
		// of the recovered model keeps the differ from emitting a type
		// change against them; a desired field colliding with such a column
		// surfaces as a failed ADD COLUMN instead.
		ft, ok := fieldTypeFor(dataType, udtName)
		if !ok {
			continue
		}

		fields = append(fields, model.FieldSpec{
			Name:     name,
			Type:     ft,
			Required: nullable == "NO",
		})
	}
	return fields, errors.Wrapf(rows.Err(), "failed to read columns of %s", tableName)
}

func (p *Postgres) introspectViews(ctx context.Context) ([]model.ViewSpec, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name, view_definition, false AS materialized
		FROM information_schema.views
		WHERE table_schema = 'public'
		UNION ALL
		SELECT matviewname, definition, true
		FROM pg_matviews
		WHERE schemaname = 'public'
		ORDER BY 1`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query views")
	}
	defer rows.Close()

	var views []model.ViewSpec
	for rows.Next() {
		var v model.ViewSpec
		if err := rows.Scan(&v.Name, &v.Definition, &v.Materialized); err != nil {
			return nil, errors.Wrap(err, "failed to scan view")
		}
		views = append(views, v)
	}
	return views, errors.Wrap(rows.Err(), "failed to read views")
}

// fieldTypeFor maps a catalog column type back to a representative field
// type. The mapping is many-to-one in the forward direction, so a
// representative per storage class is the best the catalog can recover;
// same-class representatives never trigger destructive type changes. ok is
// false for catalog types the field type catalog cannot express.
func fieldTypeFor(dataType, udtName string) (model.FieldType, bool) {
	switch dataType {
	case "text", "character varying":
		return model.TypeText, true
	case "integer":
		return model.TypeInteger, true
	case "bigint":
		return model.TypeBigInteger, true
	case "smallint":
		return model.TypeRating, true
	case "numeric":
		return model.TypeDecimal, true
	case "double precision", "real":
		return model.TypeFloat, true
	case "boolean":
		return model.TypeBoolean, true
	case "date":
		return model.TypeDate, true
	case "time without time zone", "time with time zone":
		return model.TypeTime, true
	case "timestamp with time zone", "timestamp without time zone":
		return model.TypeDateTime, true
	case "interval":
		return model.TypeDuration, true
	case "jsonb", "json":
		return model.TypeJSON, true
	case "point":
		return model.TypeGeolocation, true
	case "ARRAY":
		if udtName == "_text" {
			return model.TypeMultiSelect, true
		}
	}
	return model.TypeUnknown, false
}
