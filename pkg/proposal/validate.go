package proposal

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrValidation is wrapped by every *ValidationError.
var ErrValidation = errors.New("proposal validation failed")

// FieldError describes a malformed or missing proposal field.
type FieldError struct {
	Field   string
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError rejects a proposal before the pipeline runs. It carries
// every field problem found, not just the first.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all field errors.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("proposal validation failed: %s", e.Errors[0].Error())
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("proposal validation failed with %d errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validate checks the structural fields of p. It does not consult policy; an
// unknown category is a policy configuration problem reported later.
func Validate(p *Proposal) error {
	var errs []FieldError

	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "is required"})
	}
	if strings.TrimSpace(p.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "is required"})
	}
	if strings.TrimSpace(string(p.Category)) == "" {
		errs = append(errs, FieldError{Field: "category", Message: "is required"})
	}
	switch {
	case math.IsNaN(p.Budget) || math.IsInf(p.Budget, 0):
		errs = append(errs, FieldError{Field: "budget", Message: "must be a finite number"})
	case p.Budget < 0:
		errs = append(errs, FieldError{Field: "budget", Message: "must be non-negative"})
	}
	if p.Attendees < 0 {
		errs = append(errs, FieldError{Field: "attendees", Message: "must be non-negative"})
	}
	if strings.TrimSpace(p.SubmittedBy) == "" {
		errs = append(errs, FieldError{Field: "submitted_by", Message: "is required"})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
