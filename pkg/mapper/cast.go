package mapper

import (
	"fmt"

	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/tablekeeper/tablekeeper/pkg/utils"
)

type castKey struct {
	from model.StorageClass
	to   model.StorageClass
}

// castTable enumerates the known cast expressions between storage classes.
// Each template receives the quoted column name. A pair absent from this
// table (and not same-class) has no known cast and is a fatal validation
// error at generation time; the engine never silently truncates data.
var castTable = map[castKey]string{
	// text -> scalar parses; empty strings become NULL rather than erroring
	{model.StorageText, model.StorageInteger}:   "nullif(trim(%s), '')::integer",
	{model.StorageText, model.StorageBigint}:    "nullif(trim(%s), '')::bigint",
	{model.StorageText, model.StorageSmallint}:  "nullif(trim(%s), '')::smallint",
	{model.StorageText, model.StorageNumeric}:   "nullif(trim(%s), '')::numeric",
	{model.StorageText, model.StorageDouble}:    "nullif(trim(%s), '')::double precision",
	{model.StorageText, model.StorageBoolean}:   "nullif(trim(%s), '')::boolean",
	{model.StorageText, model.StorageDate}:      "nullif(trim(%s), '')::date",
	{model.StorageText, model.StorageTimestamp}: "nullif(trim(%s), '')::timestamptz",
	{model.StorageText, model.StorageTimeOfDay}: "nullif(trim(%s), '')::time",
	{model.StorageText, model.StorageInterval}:  "nullif(trim(%s), '')::interval",
	{model.StorageText, model.StorageJSONB}:     "nullif(trim(%s), '')::jsonb",
	{model.StorageText, model.StorageTextArray}: "CASE WHEN %s IS NULL OR %s = '' THEN NULL ELSE ARRAY[%s] END",

	// scalar -> text is always expressible
	{model.StorageInteger, model.StorageText}:   "%s::text",
	{model.StorageBigint, model.StorageText}:    "%s::text",
	{model.StorageSmallint, model.StorageText}:  "%s::text",
	{model.StorageNumeric, model.StorageText}:   "%s::text",
	{model.StorageDouble, model.StorageText}:    "%s::text",
	{model.StorageBoolean, model.StorageText}:   "%s::text",
	{model.StorageDate, model.StorageText}:      "%s::text",
	{model.StorageTimestamp, model.StorageText}: "%s::text",
	{model.StorageTimeOfDay, model.StorageText}: "%s::text",
	{model.StorageInterval, model.StorageText}:  "%s::text",
	{model.StorageJSONB, model.StorageText}:     "%s::text",
	{model.StorageTextArray, model.StorageText}: "array_to_string(%s, ',')",

	// numeric widenings and narrowings
	{model.StorageInteger, model.StorageBigint}:   "%s::bigint",
	{model.StorageInteger, model.StorageNumeric}:  "%s::numeric",
	{model.StorageInteger, model.StorageDouble}:   "%s::double precision",
	{model.StorageSmallint, model.StorageInteger}: "%s::integer",
	{model.StorageSmallint, model.StorageBigint}:  "%s::bigint",
	{model.StorageSmallint, model.StorageNumeric}: "%s::numeric",
	{model.StorageSmallint, model.StorageDouble}:  "%s::double precision",
	{model.StorageBigint, model.StorageInteger}:   "%s::integer",
	{model.StorageBigint, model.StorageNumeric}:   "%s::numeric",
	{model.StorageBigint, model.StorageDouble}:    "%s::double precision",
	{model.StorageNumeric, model.StorageInteger}:  "round(%s)::integer",
	{model.StorageNumeric, model.StorageBigint}:   "round(%s)::bigint",
	{model.StorageNumeric, model.StorageDouble}:   "%s::double precision",
	{model.StorageDouble, model.StorageNumeric}:   "%s::numeric",
	{model.StorageDouble, model.StorageInteger}:   "round(%s)::integer",
	{model.StorageDouble, model.StorageBigint}:    "round(%s)::bigint",
	{model.StorageInteger, model.StorageSmallint}: "%s::smallint",

	// temporal conversions
	{model.StorageDate, model.StorageTimestamp}: "%s::timestamptz",
	{model.StorageTimestamp, model.StorageDate}: "%s::date",
}

// CastExpression returns the USING expression for changing a column from one
// field type to another. An empty expression means the change needs no USING
// clause (same storage class, possibly different precision).
//
// An unknown cast pair returns a *model.ValidationError; the generator
// surfaces it before any statement reaches the database.
func CastExpression(column string, from, to model.FieldType) (string, error) {
	fromClass, toClass := from.Class(), to.Class()
	if fromClass == model.StorageNone || toClass == model.StorageNone {
		return "", model.Validationf("cannot cast virtual field type (%s -> %s)", from, to)
	}
	if fromClass == toClass {
		return "", nil
	}

	tmpl, ok := castTable[castKey{fromClass, toClass}]
	if !ok {
		return "", model.Validationf("no known cast from %s to %s for column %q", from, to, column)
	}

	quoted := utils.QuoteIdentifier(column)
	args := make([]any, countVerbs(tmpl))
	for i := range args {
		args[i] = quoted
	}
	return fmt.Sprintf(tmpl, args...), nil
}

func countVerbs(tmpl string) int {
	n := 0
	for i := 0; i+1 < len(tmpl); i++ {
		if tmpl[i] == '%' && tmpl[i+1] == 's' {
			n++
		}
	}
	return n
}
