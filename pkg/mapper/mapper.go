// Package mapper translates abstract field specs into concrete PostgreSQL
// column definitions: base column type, NOT NULL/UNIQUE clauses, CHECK
// clauses for enumerated options, rendered default literals, and the USING
// cast expressions required for column type changes.
//
// Mapping is a pure function of the field spec; failures (an option set on a
// type that cannot carry one, a default that cannot be rendered, a type
// change with no known cast) are *model.ValidationError values surfaced
// before any DDL is generated.
package mapper

import (
	"fmt"
	"strings"

	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/tablekeeper/tablekeeper/pkg/utils"
)

// ColumnDefinition is the concrete PostgreSQL rendering of a stored field.
type ColumnDefinition struct {
	// Name is the quoted-on-render column name.
	Name string

	// SQLType is the PostgreSQL type (e.g. "numeric(19,4)").
	SQLType string

	// NotNull maps the field's required flag.
	NotNull bool

	// Unique maps the field's unique flag.
	Unique bool

	// Default is the rendered SQL default literal, empty when none.
	Default string

	// Check is the rendered CHECK expression for option-carrying types,
	// empty when none.
	Check string
}

// Map converts a stored field spec into its column definition. Virtual
// fields are rejected; callers filter them out before mapping.
func Map(f model.FieldSpec) (ColumnDefinition, error) {
	if f.IsVirtual() {
		return ColumnDefinition{}, model.Validationf("field %q is virtual and has no column definition", f.Name)
	}
	if !f.Type.Valid() {
		return ColumnDefinition{}, model.Validationf("field %q has unknown type", f.Name)
	}

	def := ColumnDefinition{
		Name:    f.Name,
		SQLType: f.Type.SQLType(),
		NotNull: f.Required,
		Unique:  f.Unique,
		Check:   OptionsCheck(f),
	}

	if f.Default != nil {
		lit, err := DefaultLiteral(f)
		if err != nil {
			return ColumnDefinition{}, err
		}
		def.Default = lit
	}

	return def, nil
}

// Clause renders the base column clause as it appears in CREATE TABLE and
// ADD COLUMN statements: name, type, default and NOT NULL. Unique and check
// constraints are not inlined; the generator attaches them as named table
// constraints so they keep stable, identity-derived names that survive
// renames and can be dropped by name later.
func (c ColumnDefinition) Clause() string {
	var b strings.Builder
	b.WriteString(utils.QuoteIdentifier(c.Name))
	b.WriteString(" ")
	b.WriteString(c.SQLType)
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// OptionsCheck renders the CHECK expression enumerating the allowed values
// of a select field. Returns "" for fields without options.
//
// Single select: col IN ('a', 'b'). Multi select (text[] storage): the
// column must be contained in the allowed-value array.
func OptionsCheck(f model.FieldSpec) string {
	if len(f.Options) == 0 || !f.Type.SupportsOptions() {
		return ""
	}

	quoted := make([]string, len(f.Options))
	for i, opt := range f.Options {
		quoted[i] = utils.QuoteLiteral(opt)
	}

	col := utils.QuoteIdentifier(f.Name)
	if f.Type.Class() == model.StorageTextArray {
		return fmt.Sprintf("%s <@ ARRAY[%s]::text[]", col, strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(quoted, ", "))
}

// DefaultLiteral renders the configured default value of a field as a SQL
// literal appropriate for its storage class.
func DefaultLiteral(f model.FieldSpec) (string, error) {
	if f.Default == nil {
		return "", nil
	}
	raw := *f.Default

	switch f.Type.Class() {
	case model.StorageInteger, model.StorageBigint, model.StorageSmallint,
		model.StorageNumeric, model.StorageDouble:
		if !isNumericLiteral(raw) {
			return "", model.Validationf("field %q: default %q is not a valid numeric literal", f.Name, raw)
		}
		return raw, nil

	case model.StorageBoolean:
		switch strings.ToLower(raw) {
		case "true", "false":
			return strings.ToLower(raw), nil
		}
		return "", model.Validationf("field %q: default %q is not a valid boolean literal", f.Name, raw)

	case model.StorageTimestamp, model.StorageDate, model.StorageTimeOfDay:
		// The configured sentinel "now" becomes the engine-evaluated current
		// timestamp; anything else is a literal the engine passes through.
		if strings.EqualFold(raw, "now") {
			return "now()", nil
		}
		return utils.QuoteLiteral(raw), nil

	case model.StorageTextArray:
		if raw == "" {
			return "'{}'::text[]", nil
		}
		return fmt.Sprintf("ARRAY[%s]::text[]", utils.QuoteLiteral(raw)), nil

	case model.StorageJSONB:
		return utils.QuoteLiteral(raw) + "::jsonb", nil

	case model.StorageText, model.StorageInterval, model.StoragePoint:
		return utils.QuoteLiteral(raw), nil
	}

	return "", model.Validationf("field %q: type %s cannot carry a default", f.Name, f.Type)
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	seenDigit := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '-' && i == 0:
		case r == '.':
		default:
			return false
		}
	}
	return seenDigit
}
