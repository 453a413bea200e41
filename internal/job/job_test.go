package job_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdvapourize/internal/job"
	"hdvapourize/internal/services"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to job.State
		want     bool
	}{
		{job.StatePending, job.StateAnalyzing, true},
		{job.StateAnalyzing, job.StateRewrapping, true},
		{job.StateRewrapping, job.StateProcessing, true},
		{job.StateProcessing, job.StateFinalizing, true},
		{job.StateFinalizing, job.StateSucceeded, true},
		{job.StatePending, job.StateProcessing, false},
		{job.StateProcessing, job.StateRewrapping, false},
		{job.StateAnalyzing, job.StateSkipped, true},
		{job.StateRewrapping, job.StateSkipped, false},
		{job.StatePending, job.StateCancelled, true},
		{job.StateProcessing, job.StateFailed, true},
		{job.StateFailed, job.StateAnalyzing, false},
		{job.StateSucceeded, job.StateFailed, false},
		{job.StateCancelled, job.StateCancelled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, job.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStageOrder(t *testing.T) {
	stages := job.Stages()
	require.Len(t, stages, 4)
	for i, s := range stages {
		assert.Equal(t, i, s.Index())
		assert.True(t, s.RunningState().Running())
	}
	assert.Equal(t, -1, job.StageID("bogus").Index())
}

func TestRecordEnforcesOrder(t *testing.T) {
	j := job.New("/in/a.dv", "a.dv", "/out/a_prores.mov")
	require.NoError(t, j.Begin(job.StageAnalyze))

	err := j.Record(job.StageResult{Stage: job.StageRewrap})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))

	require.NoError(t, j.Record(job.StageResult{Stage: job.StageAnalyze}))
	require.Error(t, j.Record(job.StageResult{Stage: job.StageAnalyze}), "duplicate stage")

	require.NoError(t, j.Begin(job.StageRewrap))
	require.NoError(t, j.Record(job.StageResult{
		Stage:       job.StageRewrap,
		Error:       "exit status 1",
		FailureKind: services.KindToolFailure,
	}))
	assert.Error(t, j.Record(job.StageResult{Stage: job.StageProcess}), "no stage after a failure")

	cause := services.Wrap(services.ErrToolFailure, "rewrap", "run", "ffmpeg failed", nil)
	require.NoError(t, j.Finish(job.StateFailed, cause))
	assert.Equal(t, services.KindToolFailure, j.FailureKind)
	assert.True(t, j.Terminal())
	assert.Error(t, j.Record(job.StageResult{Stage: job.StageProcess}))
	assert.Error(t, j.Begin(job.StageProcess))
}

func TestArtifactsAndPartial(t *testing.T) {
	j := job.New("/in/a.dv", "a.dv", "/out/a_prores.mov")
	assert.Len(t, j.ID, 36)
	assert.Len(t, j.ShortID(), 8)
	assert.Equal(t, "/out/a_prores.partial.mov", j.PartialOutput())

	require.NoError(t, j.Begin(job.StageAnalyze))
	require.NoError(t, j.Record(job.StageResult{Stage: job.StageAnalyze}))
	require.NoError(t, j.Begin(job.StageRewrap))
	require.NoError(t, j.Record(job.StageResult{Stage: job.StageRewrap, Artifact: "/tmp/j/rewrap.mov", Truncated: true}))
	assert.Equal(t, "/tmp/j/rewrap.mov", j.Artifact(job.StageRewrap))
	assert.True(t, j.Truncated)
	assert.Empty(t, j.Artifact(job.StageProcess))
}

func TestFinishRejectsNonTerminal(t *testing.T) {
	j := job.New("a", "a", "b")
	assert.Error(t, j.Finish(job.StateAnalyzing, nil))
	require.NoError(t, j.Finish(job.StateCancelled, services.Wrap(services.ErrCancelled, "batch", "schedule", "not started", nil)))
	assert.Equal(t, services.KindCancelled, j.FailureKind)
	assert.Zero(t, j.Elapsed())
}

func TestParseState(t *testing.T) {
	s, ok := job.ParseState(" Succeeded ")
	assert.True(t, ok)
	assert.Equal(t, job.StateSucceeded, s)
	_, ok = job.ParseState("ripping")
	assert.False(t, ok)
}
