package differ

import "fmt"

// AmbiguityError indicates the differ could not disambiguate a rename from
// an unrelated drop+create pair, or detected a suspected StableID reuse.
// No statements are generated when this error is raised; the schema model
// must be corrected by its author.
type AmbiguityError struct {
	msg string
}

func (e *AmbiguityError) Error() string { return e.msg }

// Ambiguityf creates an AmbiguityError with a formatted message.
func Ambiguityf(format string, args ...any) *AmbiguityError {
	return &AmbiguityError{msg: fmt.Sprintf(format, args...)}
}
