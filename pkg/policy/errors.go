package policy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCategory indicates a proposal category missing from the table.
	ErrUnknownCategory = errors.New("category not present in policy table")

	// ErrInvalidTable indicates a table that failed validation.
	ErrInvalidTable = errors.New("invalid policy table")
)

// FieldError describes one validation failure in a policy table.
type FieldError struct {
	// Field is the dotted path, e.g. "categories.workshop.ceiling".
	Field   string
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigError is a fatal policy misconfiguration. It is surfaced to the caller
// and never retried.
type ConfigError struct {
	// Category is set when the error concerns a single category.
	Category Category

	// Problems lists validation failures when Err is ErrInvalidTable.
	Problems []FieldError

	Err error
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	switch {
	case len(e.Problems) == 1:
		return fmt.Sprintf("policy config: %s", e.Problems[0].Error())
	case len(e.Problems) > 1:
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("policy config: %d problems:\n", len(e.Problems)))
		for _, p := range e.Problems {
			sb.WriteString(fmt.Sprintf("  - %s\n", p.Error()))
		}
		return sb.String()
	case e.Category != "":
		return fmt.Sprintf("policy config: category %q: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("policy config: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
