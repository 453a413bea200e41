package workflow_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"hdvapourize/internal/workflow"
)

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "Analyze", workflow.StageLabel("analyze"))
	assert.Equal(t, "Best Effort", workflow.StageLabel("best_effort"))
	assert.Equal(t, "", workflow.StageLabel(" "))
}

func TestStageLabelConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				assert.Equal(t, "Process", workflow.StageLabel("process"))
			}
		}()
	}
	wg.Wait()
}
