package services

import "context"

// Scope identifies where in a conversion run a piece of work happens.
// Empty fields are unset.
type Scope struct {
	RunID     string
	JobID     string
	Stage     string
	RequestID string
}

type scopeKey struct{}

// ScopeFrom returns the Scope carried by ctx.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithScope layers the non-empty fields of s over the Scope already in ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	cur := ScopeFrom(ctx)
	next := cur
	if s.RunID != "" {
		next.RunID = s.RunID
	}
	if s.JobID != "" {
		next.JobID = s.JobID
	}
	if s.Stage != "" {
		next.Stage = s.Stage
	}
	if s.RequestID != "" {
		next.RequestID = s.RequestID
	}
	if next == cur {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, next)
}

func WithRunID(ctx context.Context, id string) context.Context {
	return WithScope(ctx, Scope{RunID: id})
}

func WithJobID(ctx context.Context, id string) context.Context {
	return WithScope(ctx, Scope{JobID: id})
}

func WithStage(ctx context.Context, stage string) context.Context {
	return WithScope(ctx, Scope{Stage: stage})
}

// WithRequestID tags status API requests.
func WithRequestID(ctx context.Context, id string) context.Context {
	return WithScope(ctx, Scope{RequestID: id})
}
