package logging

import (
	"strings"
	"sync"
)

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when stages or percentage buckets change. It is safe for concurrent use so
// one sampler can be shared by every job in a batch.
type ProgressSampler struct {
	mu         sync.Mutex
	bucketSize float64
	state      map[string]samplerState
}

type samplerState struct {
	stage  string
	bucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, state: make(map[string]samplerState)}
}

// ShouldLog reports whether a progress event for key should be logged.
// Percent can be negative to indicate "unknown".
func (s *ProgressSampler) ShouldLog(key, stage string, percent float64) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stage = strings.TrimSpace(stage)
	st, ok := s.state[key]
	if !ok {
		st = samplerState{bucket: -1}
	}
	emit := false
	if stage != "" && stage != st.stage {
		st.stage = stage
		st.bucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > st.bucket {
			st.bucket = bucket
			emit = true
		}
	}
	s.state[key] = st
	return emit
}

// Forget drops the sampler state for key once its job finishes.
func (s *ProgressSampler) Forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.state, key)
	s.mu.Unlock()
}
