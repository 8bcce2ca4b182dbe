package model

import "fmt"

// ValidationError indicates a malformed schema model or an operation the
// type mapper cannot express (e.g. an un-castable type change). It is always
// raised before any DDL touches the database.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validationf creates a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of the model:
//   - table and field StableIDs are positive and unique within their scope
//   - names are non-empty and unique within their scope
//   - the Virtual flag agrees with the type catalog
//   - options appear only on types that support them
//   - unique constraints and indexes reference existing, stored fields
//
// Any violation is returned as a *ValidationError.
func (m *SchemaModel) Validate() error {
	tableIDs := make(map[int64]string, len(m.Tables))
	tableNames := make(map[string]int64, len(m.Tables))

	for i := range m.Tables {
		t := &m.Tables[i]
		if t.StableID <= 0 {
			return Validationf("table %q has invalid stableId %d", t.Name, t.StableID)
		}
		if t.Name == "" {
			return Validationf("table with stableId %d has empty name", t.StableID)
		}
		if prev, ok := tableIDs[t.StableID]; ok {
			return Validationf("duplicate table stableId %d shared by %q and %q", t.StableID, prev, t.Name)
		}
		if prev, ok := tableNames[t.Name]; ok {
			return Validationf("duplicate table name %q (stableIds %d and %d)", t.Name, prev, t.StableID)
		}
		tableIDs[t.StableID] = t.Name
		tableNames[t.Name] = t.StableID

		if err := t.validate(); err != nil {
			return err
		}
	}

	viewIDs := make(map[int64]string, len(m.Views))
	viewNames := make(map[string]struct{}, len(m.Views))
	for i := range m.Views {
		v := &m.Views[i]
		if v.StableID <= 0 {
			return Validationf("view %q has invalid stableId %d", v.Name, v.StableID)
		}
		if v.Name == "" {
			return Validationf("view with stableId %d has empty name", v.StableID)
		}
		if v.Definition == "" {
			return Validationf("view %q has empty definition", v.Name)
		}
		if prev, ok := viewIDs[v.StableID]; ok {
			return Validationf("duplicate view stableId %d shared by %q and %q", v.StableID, prev, v.Name)
		}
		if _, ok := viewNames[v.Name]; ok {
			return Validationf("duplicate view name %q", v.Name)
		}
		if _, ok := tableNames[v.Name]; ok {
			return Validationf("view %q collides with a table of the same name", v.Name)
		}
		if v.Refresh && !v.Materialized {
			return Validationf("view %q requests refresh but is not materialized", v.Name)
		}
		viewIDs[v.StableID] = v.Name
		viewNames[v.Name] = struct{}{}
	}

	return nil
}

func (t *TableSpec) validate() error {
	fieldIDs := make(map[int64]string, len(t.Fields))
	fieldNames := make(map[string]int64, len(t.Fields))
	stored := make(map[int64]struct{}, len(t.Fields))

	for i := range t.Fields {
		f := &t.Fields[i]
		if f.StableID <= 0 {
			return Validationf("table %q: field %q has invalid stableId %d", t.Name, f.Name, f.StableID)
		}
		if f.Name == "" {
			return Validationf("table %q: field with stableId %d has empty name", t.Name, f.StableID)
		}
		if prev, ok := fieldIDs[f.StableID]; ok {
			return Validationf("table %q: duplicate field stableId %d shared by %q and %q", t.Name, f.StableID, prev, f.Name)
		}
		if prev, ok := fieldNames[f.Name]; ok {
			return Validationf("table %q: duplicate field name %q (stableIds %d and %d)", t.Name, f.Name, prev, f.StableID)
		}
		if !f.Type.Valid() {
			return Validationf("table %q: field %q has unknown type", t.Name, f.Name)
		}
		if f.Virtual != f.Type.Virtual() {
			return Validationf("table %q: field %q virtual flag disagrees with type %s", t.Name, f.Name, f.Type)
		}
		if len(f.Options) > 0 && !f.Type.SupportsOptions() {
			return Validationf("table %q: field %q of type %s cannot carry options", t.Name, f.Name, f.Type)
		}
		if f.Type.SupportsOptions() && len(f.Options) == 0 {
			return Validationf("table %q: select field %q has no options", t.Name, f.Name)
		}
		if f.IsVirtual() && (f.Required || f.Unique || f.Default != nil) {
			return Validationf("table %q: virtual field %q cannot carry column constraints", t.Name, f.Name)
		}
		fieldIDs[f.StableID] = f.Name
		fieldNames[f.Name] = f.StableID
		if !f.IsVirtual() {
			stored[f.StableID] = struct{}{}
		}
	}

	for _, uc := range t.UniqueConstraints {
		if len(uc) == 0 {
			return Validationf("table %q: empty unique constraint", t.Name)
		}
		for _, id := range uc {
			if _, ok := stored[id]; !ok {
				return Validationf("table %q: unique constraint references unknown or virtual field %d", t.Name, id)
			}
		}
	}

	for _, idx := range t.Indexes {
		if len(idx.FieldIDs) == 0 {
			return Validationf("table %q: index with no fields", t.Name)
		}
		for _, id := range idx.FieldIDs {
			if _, ok := stored[id]; !ok {
				return Validationf("table %q: index references unknown or virtual field %d", t.Name, id)
			}
		}
	}

	return nil
}
