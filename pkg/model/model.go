// Package model defines the schema model consumed by the migration engine:
// tables, fields, indexes and views, together with the field type catalog,
// model validation, and the canonical checksum used for the fast skip path.
//
// A SchemaModel is an immutable value object constructed once per migration
// attempt. Tables and fields carry a stable integer identity (StableID) that
// is assigned at creation and never reused; all diffing is keyed on it, never
// on the mutable name.
package model

import "time"

type (
	// FieldSpec describes a single field of a table. Virtual fields (formula,
	// rollup, lookup, count) are part of the model but never correspond to a
	// stored column.
	FieldSpec struct {
		// StableID is the immutable identity of the field. It is assigned
		// once and never reused within the lifetime of the table.
		StableID int64 `json:"stableId"`

		// Name is the current column name. Renames change Name while keeping
		// StableID.
		Name string `json:"name"`

		// Type is the abstract field type from the catalog.
		Type FieldType `json:"type"`

		// Required maps to NOT NULL on the column.
		Required bool `json:"required,omitempty"`

		// Unique maps to a UNIQUE constraint on the column.
		Unique bool `json:"unique,omitempty"`

		// Default is the configured default value, rendered by the type
		// mapper into a SQL literal. Nil means no default.
		Default *string `json:"default,omitempty"`

		// Options is the enumerated allowed-value set for select types.
		Options []string `json:"options,omitempty"`

		// Virtual marks computed fields. It must agree with Type.Virtual();
		// validation rejects models where the two disagree.
		Virtual bool `json:"virtual,omitempty"`
	}

	// IndexSpec describes a secondary index over one or more fields,
	// referenced by field StableID so the index survives renames.
	IndexSpec struct {
		// FieldIDs are the StableIDs of the indexed fields, in index order.
		FieldIDs []int64 `json:"fieldIds"`

		// Unique marks the index as a unique index.
		Unique bool `json:"unique,omitempty"`

		// Concurrent requests a CREATE INDEX CONCURRENTLY build. Concurrent
		// builds cannot run inside a transaction block and are executed as a
		// separate post-commit step.
		Concurrent bool `json:"concurrent,omitempty"`
	}

	// TableSpec describes a table: its identity, current name, ordered fields,
	// table-level unique constraints, and secondary indexes.
	TableSpec struct {
		StableID int64  `json:"stableId"`
		Name     string `json:"name"`

		// Fields is ordered; the order determines column order in the initial
		// CREATE TABLE and is significant for the checksum.
		Fields []FieldSpec `json:"fields"`

		// UniqueConstraints are table-level unique constraints, each an
		// ordered set of field StableIDs.
		UniqueConstraints [][]int64 `json:"uniqueConstraints,omitempty"`

		Indexes []IndexSpec `json:"indexes,omitempty"`
	}

	// ViewSpec describes a (materialized) view. Views are altered via
	// drop-then-create; materialized views additionally support an explicit
	// refresh step independent of schema changes.
	ViewSpec struct {
		StableID     int64  `json:"stableId"`
		Name         string `json:"name"`
		Definition   string `json:"definition"`
		Materialized bool   `json:"materialized,omitempty"`

		// Refresh requests a REFRESH MATERIALIZED VIEW step for this view on
		// the next run, independent of any definition change.
		Refresh bool `json:"refresh,omitempty"`
	}

	// SchemaModel is the full desired schema: one per migration attempt.
	// Table order is not significant (tables are matched by StableID); field
	// order within a table is.
	SchemaModel struct {
		Tables []TableSpec `json:"tables"`
		Views  []ViewSpec  `json:"views,omitempty"`
	}

	// MigrationRecord is one entry of the append-only migration log.
	MigrationRecord struct {
		Checksum   string    `json:"checksum"`
		Statements []string  `json:"statements"`
		AppliedAt  time.Time `json:"appliedAt"`
	}
)

// Field returns the field with the given StableID, if present.
func (t *TableSpec) Field(stableID int64) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.StableID == stableID {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldsByID returns a StableID-keyed map of the table's fields for O(1)
// diff matching.
func (t *TableSpec) FieldsByID() map[int64]FieldSpec {
	m := make(map[int64]FieldSpec, len(t.Fields))
	for _, f := range t.Fields {
		m[f.StableID] = f
	}
	return m
}

// StoredFields returns the fields that produce columns, in declared order.
func (t *TableSpec) StoredFields() []FieldSpec {
	out := make([]FieldSpec, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.IsVirtual() {
			out = append(out, f)
		}
	}
	return out
}

// TablesByID returns a StableID-keyed map of the model's tables.
func (m *SchemaModel) TablesByID() map[int64]TableSpec {
	out := make(map[int64]TableSpec, len(m.Tables))
	for _, t := range m.Tables {
		out[t.StableID] = t
	}
	return out
}

// ViewsByID returns a StableID-keyed map of the model's views.
func (m *SchemaModel) ViewsByID() map[int64]ViewSpec {
	out := make(map[int64]ViewSpec, len(m.Views))
	for _, v := range m.Views {
		out[v.StableID] = v
	}
	return out
}

// IsVirtual reports whether the field is computed and never yields a column.
// A field is virtual when either the catalog marks its type virtual or the
// spec flags it explicitly; Validate guarantees the two agree.
func (f *FieldSpec) IsVirtual() bool {
	return f.Virtual || f.Type.Virtual()
}
