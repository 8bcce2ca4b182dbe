// Package differ compares two schema models and produces the structured
// Change Set consumed by the DDL generator.
//
// Matching is by StableID, never by name: a table or field that keeps its
// StableID but changes name yields a Rename, not a Drop+Create, so the
// underlying data is preserved. When the previous model comes from catalog
// introspection (cold start) StableIDs are unavailable and the differ falls
// back to name matching; in that mode any situation it cannot disambiguate
// is a fatal AmbiguityError rather than a guess.
package differ

import "github.com/tablekeeper/tablekeeper/pkg/model"

// TableChangeKind tags a per-table change set entry.
type TableChangeKind int

const (
	TableCreate TableChangeKind = iota
	TableRename
	TableDrop
	TableAlter
)

func (k TableChangeKind) String() string {
	switch k {
	case TableCreate:
		return "create"
	case TableRename:
		return "rename"
	case TableDrop:
		return "drop"
	case TableAlter:
		return "alter"
	}
	return "unknown"
}

// FieldChangeKind tags a field-level delta within a table alter entry.
type FieldChangeKind int

const (
	FieldAdd FieldChangeKind = iota
	FieldRemove
	FieldRename
	FieldTypeChange
	FieldConstraintChange
	FieldDefaultChange
	FieldOptionsChange
)

func (k FieldChangeKind) String() string {
	switch k {
	case FieldAdd:
		return "add"
	case FieldRemove:
		return "remove"
	case FieldRename:
		return "rename"
	case FieldTypeChange:
		return "typeChange"
	case FieldConstraintChange:
		return "constraintChange"
	case FieldDefaultChange:
		return "defaultChange"
	case FieldOptionsChange:
		return "optionsChange"
	}
	return "unknown"
}

// IndexChangeKind tags an index delta.
type IndexChangeKind int

const (
	IndexCreate IndexChangeKind = iota
	IndexDrop
)

// UniqueChangeKind tags a table-level unique constraint delta.
type UniqueChangeKind int

const (
	UniqueAdd UniqueChangeKind = iota
	UniqueDrop
)

// ViewChangeKind tags a view delta. Replace means drop-then-create (no
// native ALTER VIEW body rewrite is assumed); Refresh is an explicit
// materialized view refresh independent of schema changes.
type ViewChangeKind int

const (
	ViewCreate ViewChangeKind = iota
	ViewDrop
	ViewRename
	ViewReplace
	ViewRefresh
)

type (
	// FieldChange is one field-level delta. Old is zero for Add, New is zero
	// for Remove; every other kind carries both sides.
	FieldChange struct {
		Kind FieldChangeKind
		Old  model.FieldSpec
		New  model.FieldSpec
	}

	// IndexChange is one index delta against the table's index set.
	IndexChange struct {
		Kind  IndexChangeKind
		Index model.IndexSpec
	}

	// UniqueChange is one table-level unique constraint delta.
	UniqueChange struct {
		Kind     UniqueChangeKind
		FieldIDs []int64
	}

	// TableChange is one per-table change set entry. For Create and Alter,
	// Table is the desired spec; for Drop it is the previous spec. Rename
	// entries carry OldName; a renamed table with further changes produces a
	// Rename entry followed by an Alter entry under the new name.
	TableChange struct {
		Kind    TableChangeKind
		Table   model.TableSpec
		Old     model.TableSpec // previous spec, for Alter/Rename/Drop
		OldName string          // for Rename

		Fields  []FieldChange
		Indexes []IndexChange
		Uniques []UniqueChange
	}

	// ViewChange is one view delta.
	ViewChange struct {
		Kind    ViewChangeKind
		View    model.ViewSpec
		Old     model.ViewSpec
		OldName string // for Rename
	}

	// ChangeSet is the structured diff between two schema models, prior to
	// DDL generation.
	ChangeSet struct {
		Tables []TableChange
		Views  []ViewChange
	}
)

// Empty reports whether the change set contains no changes.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Tables) == 0 && len(cs.Views) == 0
}
