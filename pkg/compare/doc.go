// Package compare provides small generic comparison helpers used by the
// schema differ when deciding whether two field or view specs differ:
// nil-safe pointer comparisons and slice comparisons with and without
// element order.
package compare
