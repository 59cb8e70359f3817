package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ProposalIDKey is the context key for the proposal being processed.
	ProposalIDKey contextKey = "proposal_id"

	// ActorKey is the context key for the user acting on a proposal.
	ActorKey contextKey = "actor"

	// StepIDKey is the context key for approval step IDs.
	StepIDKey contextKey = "step_id"
)

// contextKeys is the order in which fields are attached to records.
var contextKeys = []contextKey{RequestIDKey, ProposalIDKey, ActorKey, StepIDKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// WithProposalID adds a proposal ID to the context.
func WithProposalID(ctx context.Context, proposalID string) context.Context {
	return context.WithValue(ctx, ProposalIDKey, proposalID)
}

// GetProposalID retrieves the proposal ID from the context.
func GetProposalID(ctx context.Context) string {
	return getString(ctx, ProposalIDKey)
}

// WithActor adds the acting user to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the acting user from the context.
func GetActor(ctx context.Context) string {
	return getString(ctx, ActorKey)
}

// WithStepID adds an approval step ID to the context.
func WithStepID(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, StepIDKey, stepID)
}

// GetStepID retrieves the approval step ID from the context.
func GetStepID(ctx context.Context) string {
	return getString(ctx, StepIDKey)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the non-empty context fields as
// alternating key/value pairs.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, k := range contextKeys {
		if v := getString(ctx, k); v != "" {
			fields = append(fields, string(k), v)
		}
	}
	return fields
}

// ContextLogger returns slog.Default with the fields from ctx bound.
func ContextLogger(ctx context.Context) *slog.Logger {
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return slog.Default()
	}
	return slog.Default().With(fields...)
}
