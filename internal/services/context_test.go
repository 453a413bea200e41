package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"hdvapourize/internal/services"
)

func TestScopeLayers(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-9")
	jobCtx := services.WithJobID(ctx, "job-1")
	stageCtx := services.WithStage(jobCtx, "process")
	reqCtx := services.WithRequestID(stageCtx, "req-123")

	assert.Equal(t, services.Scope{RunID: "run-9"}, services.ScopeFrom(ctx))
	assert.Equal(t, services.Scope{RunID: "run-9", JobID: "job-1", Stage: "process", RequestID: "req-123"},
		services.ScopeFrom(reqCtx))

	// a later stage replaces the earlier one without touching the job
	next := services.WithStage(stageCtx, "finalize")
	assert.Equal(t, "finalize", services.ScopeFrom(next).Stage)
	assert.Equal(t, "job-1", services.ScopeFrom(next).JobID)
	assert.Equal(t, "process", services.ScopeFrom(stageCtx).Stage)
}

func TestScopeIgnoresBlankValues(t *testing.T) {
	base := services.WithJobID(context.Background(), "job-1")
	assert.Same(t, base, services.WithStage(base, ""))
	assert.Same(t, base, services.WithJobID(base, "job-1"))
	assert.Equal(t, services.Scope{}, services.ScopeFrom(context.Background()))
}
