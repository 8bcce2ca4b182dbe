package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tablekeeper/tablekeeper/pkg/model"
)

// Constraint and index names derive from stable identities, not from the
// mutable table/field names. A rename therefore never orphans a constraint:
// the name it was created under is still computable from the new model.

// indexName returns the identity-derived name for an index.
func indexName(table model.TableSpec, idx model.IndexSpec) string {
	parts := make([]string, len(idx.FieldIDs))
	for i, id := range idx.FieldIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	name := fmt.Sprintf("tk_idx_%d_%s", table.StableID, strings.Join(parts, "_"))
	if idx.Unique {
		name += "_uniq"
	}
	return name
}

// fieldUniqueName returns the name of the single-column unique constraint
// backing a field's unique flag.
func fieldUniqueName(table model.TableSpec, field model.FieldSpec) string {
	return fmt.Sprintf("tk_uniq_%d_f%d", table.StableID, field.StableID)
}

// tableUniqueName returns the name of a table-level unique constraint over
// an ordered set of fields.
func tableUniqueName(table model.TableSpec, fieldIDs []int64) string {
	parts := make([]string, len(fieldIDs))
	for i, id := range fieldIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("tk_uniq_%d_%s", table.StableID, strings.Join(parts, "_"))
}

// optionsCheckName returns the name of the CHECK constraint enumerating a
// select field's allowed values.
func optionsCheckName(table model.TableSpec, field model.FieldSpec) string {
	return fmt.Sprintf("tk_chk_%d_%d", table.StableID, field.StableID)
}
