package differ

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tablekeeper/tablekeeper/pkg/compare"
	"github.com/tablekeeper/tablekeeper/pkg/model"
)

type (
	// Differ computes the change set between a previous and a desired schema
	// model.
	Differ struct {
		matchByName bool
	}

	// Option configures a Differ.
	Option func(*Differ)
)

// MatchByName switches matching from StableID to name. This is the fallback
// mode for previous models recovered by catalog introspection, which carry
// no StableIDs.
func MatchByName() Option {
	return func(d *Differ) { d.matchByName = true }
}

// New creates a Differ. By default matching is by StableID.
func New(opts ...Option) *Differ {
	d := &Differ{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff compares the previous model with the desired one and returns the
// change set. A nil previous model means an empty database: every table and
// view is a Create.
func (d *Differ) Diff(prev, next *model.SchemaModel) (*ChangeSet, error) {
	if prev == nil {
		prev = &model.SchemaModel{}
	}

	cs := &ChangeSet{}

	tableChanges, err := d.diffTables(prev, next)
	if err != nil {
		return nil, err
	}
	cs.Tables = tableChanges

	viewChanges, err := d.diffViews(prev, next)
	if err != nil {
		return nil, err
	}
	cs.Views = viewChanges

	return cs, nil
}

func (d *Differ) diffTables(prev, next *model.SchemaModel) ([]TableChange, error) {
	oldTables, newTables, err := d.matchTables(prev, next)
	if err != nil {
		return nil, err
	}

	var changes []TableChange

	// Matched tables first: renames, then alters, in old-identity order.
	for _, match := range matchedKeys(oldTables, newTables) {
		oldT := oldTables[match]
		newT := newTables[match]

		if oldT.Name != newT.Name {
			changes = append(changes, TableChange{
				Kind:    TableRename,
				Table:   newT,
				Old:     oldT,
				OldName: oldT.Name,
			})
		}

		alter, err := d.diffTable(oldT, newT)
		if err != nil {
			return nil, err
		}
		if alter != nil {
			changes = append(changes, *alter)
		}
	}

	// Unmatched new tables are creates.
	for _, key := range unmatchedKeys(newTables, oldTables) {
		changes = append(changes, TableChange{Kind: TableCreate, Table: newTables[key]})
	}

	// Unmatched old tables are drops.
	for _, key := range unmatchedKeys(oldTables, newTables) {
		changes = append(changes, TableChange{Kind: TableDrop, Table: oldTables[key], Old: oldTables[key]})
	}

	return changes, nil
}

// matchTables keys both models' tables by identity. In StableID mode an
// unmatched old table and an unmatched new table sharing a name means the
// identity changed underneath a stable name, which is a configuration
// authoring error (StableID reuse) and cannot be safely interpreted.
func (d *Differ) matchTables(prev, next *model.SchemaModel) (oldTables, newTables map[string]model.TableSpec, err error) {
	if d.matchByName {
		oldTables = make(map[string]model.TableSpec, len(prev.Tables))
		for _, t := range prev.Tables {
			oldTables[t.Name] = t
		}
		newTables = make(map[string]model.TableSpec, len(next.Tables))
		for _, t := range next.Tables {
			newTables[t.Name] = t
		}

		// Name matching cannot tell a renamed table from a drop+create pair.
		droppedNames := unmatchedKeys(oldTables, newTables)
		createdNames := unmatchedKeys(newTables, oldTables)
		if len(droppedNames) > 0 && len(createdNames) > 0 {
			return nil, nil, Ambiguityf(
				"cannot disambiguate table rename from drop+create while matching by name: removed %s, added %s",
				strings.Join(droppedNames, ", "), strings.Join(createdNames, ", "))
		}
		return oldTables, newTables, nil
	}

	oldTables = make(map[string]model.TableSpec, len(prev.Tables))
	for _, t := range prev.Tables {
		oldTables[idKey(t.StableID)] = t
	}
	newTables = make(map[string]model.TableSpec, len(next.Tables))
	for _, t := range next.Tables {
		newTables[idKey(t.StableID)] = t
	}

	for _, oldKey := range unmatchedKeys(oldTables, newTables) {
		oldT := oldTables[oldKey]
		for _, newKey := range unmatchedKeys(newTables, oldTables) {
			newT := newTables[newKey]
			if oldT.Name == newT.Name {
				return nil, nil, Ambiguityf(
					"table %q changed stableId from %d to %d; stableIds are immutable and must never be reused",
					oldT.Name, oldT.StableID, newT.StableID)
			}
		}
	}

	return oldTables, newTables, nil
}

// diffTable computes the alter entry for a matched table, or nil when the
// table is unchanged (apart from a possible rename handled by the caller).
func (d *Differ) diffTable(oldT, newT model.TableSpec) (*TableChange, error) {
	fields, err := d.diffFields(oldT, newT)
	if err != nil {
		return nil, err
	}

	indexes := diffIndexes(oldT.Indexes, newT.Indexes)
	uniques := diffUniques(oldT.UniqueConstraints, newT.UniqueConstraints)

	if len(fields) == 0 && len(indexes) == 0 && len(uniques) == 0 {
		return nil, nil
	}

	return &TableChange{
		Kind:    TableAlter,
		Table:   newT,
		Old:     oldT,
		Fields:  fields,
		Indexes: indexes,
		Uniques: uniques,
	}, nil
}

func (d *Differ) diffFields(oldT, newT model.TableSpec) ([]FieldChange, error) {
	oldFields, newFields, err := d.matchFields(oldT, newT)
	if err != nil {
		return nil, err
	}

	var changes []FieldChange

	for _, key := range matchedKeys(oldFields, newFields) {
		fieldChanges, err := diffField(newT.Name, oldFields[key], newFields[key])
		if err != nil {
			return nil, err
		}
		changes = append(changes, fieldChanges...)
	}

	for _, key := range unmatchedKeys(newFields, oldFields) {
		f := newFields[key]
		if f.IsVirtual() {
			continue // virtual fields never yield column operations
		}
		changes = append(changes, FieldChange{Kind: FieldAdd, New: f})
	}

	for _, key := range unmatchedKeys(oldFields, newFields) {
		f := oldFields[key]
		if f.IsVirtual() {
			continue
		}
		changes = append(changes, FieldChange{Kind: FieldRemove, Old: f})
	}

	return changes, nil
}

func (d *Differ) matchFields(oldT, newT model.TableSpec) (oldFields, newFields map[string]model.FieldSpec, err error) {
	if d.matchByName {
		oldFields = make(map[string]model.FieldSpec, len(oldT.Fields))
		for _, f := range oldT.Fields {
			oldFields[f.Name] = f
		}
		newFields = make(map[string]model.FieldSpec, len(newT.Fields))
		for _, f := range newT.Fields {
			newFields[f.Name] = f
		}

		removed := storedOnly(oldFields, unmatchedKeys(oldFields, newFields))
		added := storedOnly(newFields, unmatchedKeys(newFields, oldFields))
		if len(removed) > 0 && len(added) > 0 {
			return nil, nil, Ambiguityf(
				"table %q: cannot disambiguate field rename from drop+add while matching by name: removed %s, added %s",
				newT.Name, strings.Join(removed, ", "), strings.Join(added, ", "))
		}
		return oldFields, newFields, nil
	}

	oldFields = make(map[string]model.FieldSpec, len(oldT.Fields))
	for _, f := range oldT.Fields {
		oldFields[idKey(f.StableID)] = f
	}
	newFields = make(map[string]model.FieldSpec, len(newT.Fields))
	for _, f := range newT.Fields {
		newFields[idKey(f.StableID)] = f
	}

	// An unmatched old field and an unmatched new field under the same name
	// means the stableId was reassigned. Refuse to guess whether data should
	// survive.
	for _, oldKey := range unmatchedKeys(oldFields, newFields) {
		oldF := oldFields[oldKey]
		for _, newKey := range unmatchedKeys(newFields, oldFields) {
			newF := newFields[newKey]
			if oldF.Name == newF.Name {
				return nil, nil, Ambiguityf(
					"table %q: field %q changed stableId from %d to %d; stableIds are immutable and must never be reused",
					newT.Name, oldF.Name, oldF.StableID, newF.StableID)
			}
		}
	}

	return oldFields, newFields, nil
}

// diffField computes the independent deltas for a matched field: name, type,
// required/unique flags, default, and option set each become a distinct
// change entry so the generator can order them correctly.
func diffField(tableName string, oldF, newF model.FieldSpec) ([]FieldChange, error) {
	oldVirtual, newVirtual := oldF.IsVirtual(), newF.IsVirtual()
	switch {
	case oldVirtual && newVirtual:
		return nil, nil
	case oldVirtual && !newVirtual:
		// Materializing a computed field is a plain column add.
		return []FieldChange{{Kind: FieldAdd, Old: oldF, New: newF}}, nil
	case !oldVirtual && newVirtual:
		return []FieldChange{{Kind: FieldRemove, Old: oldF, New: newF}}, nil
	}

	renamed := oldF.Name != newF.Name
	retyped := oldF.Type != newF.Type

	// A field that changes both name and storage representation in one step
	// is indistinguishable from an accidental stableId reuse for an
	// unrelated field. Refuse rather than risk rewriting unrelated data.
	if renamed && retyped && oldF.Type.Class() != newF.Type.Class() {
		return nil, Ambiguityf(
			"table %q: field stableId %d changed both name (%q -> %q) and type (%s -> %s); split into separate changes or assign a new stableId",
			tableName, newF.StableID, oldF.Name, newF.Name, oldF.Type, newF.Type)
	}

	var changes []FieldChange
	if renamed {
		changes = append(changes, FieldChange{Kind: FieldRename, Old: oldF, New: newF})
	}
	if retyped {
		changes = append(changes, FieldChange{Kind: FieldTypeChange, Old: oldF, New: newF})
	}
	if oldF.Required != newF.Required || oldF.Unique != newF.Unique {
		changes = append(changes, FieldChange{Kind: FieldConstraintChange, Old: oldF, New: newF})
	}
	if !compare.Pointers(oldF.Default, newF.Default) {
		changes = append(changes, FieldChange{Kind: FieldDefaultChange, Old: oldF, New: newF})
	}
	if !retyped && !compare.OrderedSlices(oldF.Options, newF.Options) {
		// A type change re-renders the option constraint already.
		changes = append(changes, FieldChange{Kind: FieldOptionsChange, Old: oldF, New: newF})
	}
	return changes, nil
}

// diffIndexes compares index sets. Index identity is the unordered pair of
// (field id list, uniqueness); the build mode is not part of the identity.
func diffIndexes(oldIdx, newIdx []model.IndexSpec) []IndexChange {
	if compare.SlicesUnordered(oldIdx, newIdx, sameIndex) {
		return nil
	}

	var changes []IndexChange
	for _, idx := range newIdx {
		if !containsIndex(oldIdx, idx) {
			changes = append(changes, IndexChange{Kind: IndexCreate, Index: idx})
		}
	}
	for _, idx := range oldIdx {
		if !containsIndex(newIdx, idx) {
			changes = append(changes, IndexChange{Kind: IndexDrop, Index: idx})
		}
	}
	return changes
}

// sameIndex is the index identity: unordered within the set, ordered field
// list within the index, build mode excluded.
func sameIndex(a, b model.IndexSpec) bool {
	return a.Unique == b.Unique && compare.OrderedSlices(a.FieldIDs, b.FieldIDs)
}

func containsIndex(set []model.IndexSpec, idx model.IndexSpec) bool {
	for _, other := range set {
		if sameIndex(other, idx) {
			return true
		}
	}
	return false
}

func diffUniques(oldUC, newUC [][]int64) []UniqueChange {
	if compare.SlicesUnordered(oldUC, newUC, compare.OrderedSlices[int64]) {
		return nil
	}

	var changes []UniqueChange
	for _, uc := range newUC {
		if !containsUnique(oldUC, uc) {
			changes = append(changes, UniqueChange{Kind: UniqueAdd, FieldIDs: uc})
		}
	}
	for _, uc := range oldUC {
		if !containsUnique(newUC, uc) {
			changes = append(changes, UniqueChange{Kind: UniqueDrop, FieldIDs: uc})
		}
	}
	return changes
}

func containsUnique(set [][]int64, uc []int64) bool {
	for _, other := range set {
		if compare.OrderedSlices(other, uc) {
			return true
		}
	}
	return false
}

func (d *Differ) diffViews(prev, next *model.SchemaModel) ([]ViewChange, error) {
	oldViews := make(map[string]model.ViewSpec, len(prev.Views))
	newViews := make(map[string]model.ViewSpec, len(next.Views))

	if d.matchByName {
		for _, v := range prev.Views {
			oldViews[v.Name] = v
		}
		for _, v := range next.Views {
			newViews[v.Name] = v
		}
	} else {
		for _, v := range prev.Views {
			oldViews[idKey(v.StableID)] = v
		}
		for _, v := range next.Views {
			newViews[idKey(v.StableID)] = v
		}
	}

	var changes []ViewChange

	for _, key := range matchedKeys(oldViews, newViews) {
		oldV, newV := oldViews[key], newViews[key]

		renamed := oldV.Name != newV.Name
		replaced := oldV.Definition != newV.Definition || oldV.Materialized != newV.Materialized

		switch {
		case replaced:
			// The replace drops the old name and creates under the new one,
			// covering any rename; a separate RENAME would target the
			// already-dropped relation.
			changes = append(changes, ViewChange{Kind: ViewReplace, View: newV, Old: oldV})
		case renamed:
			changes = append(changes, ViewChange{Kind: ViewRename, View: newV, Old: oldV, OldName: oldV.Name})
		}
		if newV.Refresh && newV.Materialized {
			changes = append(changes, ViewChange{Kind: ViewRefresh, View: newV})
		}
	}

	for _, key := range unmatchedKeys(newViews, oldViews) {
		v := newViews[key]
		changes = append(changes, ViewChange{Kind: ViewCreate, View: v})
		if v.Refresh && v.Materialized {
			changes = append(changes, ViewChange{Kind: ViewRefresh, View: v})
		}
	}
	for _, key := range unmatchedKeys(oldViews, newViews) {
		changes = append(changes, ViewChange{Kind: ViewDrop, View: oldViews[key], Old: oldViews[key]})
	}

	return changes, nil
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// matchedKeys returns the sorted keys present in both maps.
func matchedKeys[T any](a, b map[string]T) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys
}

// unmatchedKeys returns the sorted keys present in 'from' but not 'exclude'.
func unmatchedKeys[T any](from, exclude map[string]T) []string {
	keys := make([]string, 0)
	for k := range from {
		if _, ok := exclude[k]; !ok {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys
}

func storedOnly(fields map[string]model.FieldSpec, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		f := fields[k]
		if !f.IsVirtual() {
			out = append(out, k)
		}
	}
	return out
}

// sortKeys orders numeric identity keys numerically and name keys
// lexicographically, keeping diff output deterministic in both modes.
func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.ParseInt(keys[i], 10, 64)
		b, berr := strconv.ParseInt(keys[j], 10, 64)
		if aerr == nil && berr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
}
