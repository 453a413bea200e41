package logging

import (
	"sync"
	"testing"
)

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog("job", "stage", 50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Forget("job") // should not panic
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)

	steps := []struct {
		stage   string
		percent float64
		want    bool
	}{
		{"process", 0, true},
		{"process", 4, false},
		{"process", 10, true},
		{"process", 19.9, false},
		{"process", 5, false},
		{"finalize", 0, true},
		{"finalize", -1, false},
		{"finalize", 100, true},
		{"finalize", 100, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog("job-a", step.stage, step.percent); got != step.want {
			t.Fatalf("step %d (%s %.1f): got %v want %v", i, step.stage, step.percent, got, step.want)
		}
	}
}

func TestProgressSampler_KeysAreIndependent(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog("a", "process", 50) {
		t.Fatal("first event for a should log")
	}
	if !s.ShouldLog("b", "process", 10) {
		t.Fatal("first event for b should log despite a being ahead")
	}
	s.Forget("a")
	if !s.ShouldLog("a", "process", 50) {
		t.Fatal("forgotten key should log again")
	}
}

func TestProgressSampler_Concurrent(t *testing.T) {
	s := NewProgressSampler(5)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			for p := 0; p <= 100; p++ {
				s.ShouldLog(key, "process", float64(p))
			}
		}(w)
	}
	wg.Wait()
	if len(s.state) != 8 {
		t.Fatalf("expected 8 tracked keys, got %d", len(s.state))
	}
}
