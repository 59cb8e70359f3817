package audit

import "fmt"

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "memory")
	Operation string // Operation that failed ("append", "query", ...)
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// RecorderError represents a failed append.
type RecorderError struct {
	Action     Action
	ProposalID string
	Cause      error
}

// Error implements the error interface.
func (e *RecorderError) Error() string {
	if e.ProposalID != "" {
		return fmt.Sprintf("audit recorder error [action=%s, proposal_id=%s]: %v", e.Action, e.ProposalID, e.Cause)
	}
	return fmt.Sprintf("audit recorder error [action=%s]: %v", e.Action, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// NewRecorderError creates a new RecorderError.
func NewRecorderError(action Action, proposalID string, cause error) *RecorderError {
	return &RecorderError{Action: action, ProposalID: proposalID, Cause: cause}
}

// ExportError represents an error during export.
type ExportError struct {
	Format string
	Cause  error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("audit export error [format=%s]: %v", e.Format, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format string, cause error) *ExportError {
	return &ExportError{Format: format, Cause: cause}
}
