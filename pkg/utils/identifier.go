package utils

import (
	"strings"

	"github.com/lib/pq"
)

// QuoteIdentifier double-quotes a PostgreSQL identifier, handling qualified
// schema.table style names by quoting each part.
//
// Examples:
//   - "users" -> `"users"`
//   - "public.users" -> `"public"."users"`
//   - "" -> ""
func QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// QuoteLiteral single-quotes a string value for inclusion in generated DDL
// (e.g. CHECK clause option values and defaults).
func QuoteLiteral(value string) string {
	return pq.QuoteLiteral(value)
}

// QuoteIdentifiers quotes each identifier and joins them with ", ", the form
// used in column lists for indexes and unique constraints.
func QuoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
