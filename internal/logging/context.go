package logging

import (
	"context"
	"log/slog"

	"hdvapourize/internal/services"
)

// Structured log keys shared by every package.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldRunID         = "run_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for downstream filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldFailureKind records the classified failure for stage errors.
	FieldFailureKind = "failure_kind"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields turns the Scope carried by ctx into log attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	scope := services.ScopeFrom(ctx)
	pairs := [...]struct{ key, value string }{
		{FieldRunID, scope.RunID},
		{FieldJobID, scope.JobID},
		{FieldStage, scope.Stage},
		{FieldCorrelationID, scope.RequestID},
	}
	var fields []slog.Attr
	for _, p := range pairs {
		if p.value != "" {
			fields = append(fields, slog.String(p.key, p.value))
		}
	}
	return fields
}

// WithContext returns logger annotated with the run, job and stage in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(attrsToArgs(fields)...)
	}
	return logger
}
