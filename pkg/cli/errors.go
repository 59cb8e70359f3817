package cli

import (
	"errors"
	"fmt"

	"mercator-hq/quorum/pkg/config"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/workflow"
)

// Exit codes returned by the quorum command.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitRejected = 3
	ExitNotFound = 4
)

// ConfigError represents an error in configuration or command-line flags.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps an error returned by a command to the process exit code.
// Configuration problems exit 2, requests the workflow refused exit 3 and
// unknown proposals or steps exit 4.
func ExitCode(err error) int {
	var (
		cfgErr    *ConfigError
		cfgValErr config.ValidationError
		policyErr *policy.ConfigError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr), errors.As(err, &cfgValErr), errors.As(err, &policyErr):
		return ExitConfig
	case errors.Is(err, workflow.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, proposal.ErrValidation),
		errors.Is(err, proposal.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidDecision),
		errors.Is(err, workflow.ErrOutOfOrder),
		errors.Is(err, workflow.ErrAlreadyDecided),
		errors.Is(err, workflow.ErrNotInProcurement),
		errors.Is(err, workflow.ErrInvalidQuotation):
		return ExitRejected
	default:
		return ExitFailure
	}
}
