package progress

import (
	"sort"
	"sync"
	"time"

	"hdvapourize/internal/job"
)

// Weights are the relative costs of each stage. They are normalized to sum
// to one when the Aggregator is built.
type Weights map[job.StageID]float64

// DefaultWeights reflect processing dominating wall-clock time.
func DefaultWeights() Weights {
	return Weights{
		job.StageAnalyze:  0.02,
		job.StageRewrap:   0.08,
		job.StageProcess:  0.85,
		job.StageFinalize: 0.05,
	}
}

func (w Weights) normalized() Weights {
	var sum float64
	for _, s := range job.Stages() {
		if v := w[s]; v > 0 {
			sum += v
		}
	}
	if sum <= 0 {
		return DefaultWeights().normalized()
	}
	out := make(Weights, len(w))
	for _, s := range job.Stages() {
		if v := w[s]; v > 0 {
			out[s] = v / sum
		} else {
			out[s] = 0
		}
	}
	return out
}

// JobProgress is the published view of one job.
type JobProgress struct {
	ID          string      `json:"id"`
	Input       string      `json:"input"`
	Stage       job.StageID `json:"stage,omitempty"`
	State       job.State   `json:"state"`
	Fraction    float64     `json:"fraction"`
	FramesDone  int64       `json:"frames_done"`
	FramesTotal int64       `json:"frames_total"`
}

// Snapshot is an immutable copy of the batch progress.
type Snapshot struct {
	Total      int           `json:"total"`
	Completed  int           `json:"completed"`
	Running    int           `json:"running"`
	Fraction   float64       `json:"fraction"`
	ETA        time.Duration `json:"eta"`
	Elapsed    time.Duration `json:"elapsed"`
	StartedAt  time.Time     `json:"started_at"`
	Jobs       []JobProgress `json:"jobs"`
	Terminated bool          `json:"terminated"`
}

type jobEntry struct {
	id          string
	input       string
	stage       job.StageID
	state       job.State
	fraction    float64
	framesDone  int64
	framesTotal int64
}

// Aggregator tracks progress for every job in a batch.
type Aggregator struct {
	mu        sync.Mutex
	weights   Weights
	jobs      map[string]*jobEntry
	order     []string
	started   time.Time
	lastETA   time.Duration
	observers []func(Snapshot)
	now       func() time.Time
}

// NewAggregator builds an Aggregator with the given stage weights.
func NewAggregator(weights Weights) *Aggregator {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Aggregator{
		weights: weights.normalized(),
		jobs:    make(map[string]*jobEntry),
		now:     time.Now,
	}
}

// Register adds a pending job. Registering an ID twice is a no-op.
func (a *Aggregator) Register(id, input string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.jobs[id]; ok {
		return
	}
	a.jobs[id] = &jobEntry{id: id, input: input, state: job.StatePending}
	a.order = append(a.order, id)
}

// Update records stage progress for a job and recomputes the ETA.
func (a *Aggregator) Update(id string, stage job.StageID, done, total int64) {
	snap, observers := a.apply(id, func(e *jobEntry) {
		if state := stage.RunningState(); state != "" {
			e.state = state
		}
		e.stage = stage
		e.framesDone, e.framesTotal = done, total
		stageFraction := 0.0
		if total > 0 {
			stageFraction = clamp(float64(done) / float64(total))
		}
		f := a.completedWeight(stage) + a.weights[stage]*stageFraction
		if f = clamp(f); f > e.fraction {
			e.fraction = f
		}
	})
	notify(observers, snap)
}

// Finish pins a terminal job to a fraction of one for batch accounting.
func (a *Aggregator) Finish(id string, state job.State) {
	snap, observers := a.apply(id, func(e *jobEntry) {
		e.state = state
		e.fraction = 1
	})
	notify(observers, snap)
}

// Subscribe registers an observer that receives a Snapshot after every
// change. Observers run on the updating goroutine and must not block.
func (a *Aggregator) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// Snapshot returns the current progress.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) apply(id string, fn func(*jobEntry)) (Snapshot, []func(Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.jobs[id]
	if !ok {
		e = &jobEntry{id: id, state: job.StatePending}
		a.jobs[id] = e
		a.order = append(a.order, id)
	}
	if e.state.Terminal() {
		return a.snapshotLocked(), nil
	}
	if a.started.IsZero() {
		a.started = a.now()
	}
	fn(e)
	a.recomputeETALocked()
	observers := make([]func(Snapshot), len(a.observers))
	copy(observers, a.observers)
	return a.snapshotLocked(), observers
}

func (a *Aggregator) completedWeight(stage job.StageID) float64 {
	var sum float64
	for _, s := range job.Stages() {
		if s == stage {
			break
		}
		sum += a.weights[s]
	}
	return sum
}

func (a *Aggregator) batchFractionLocked() float64 {
	if len(a.jobs) == 0 {
		return 0
	}
	var sum float64
	for _, e := range a.jobs {
		sum += e.fraction
	}
	return clamp(sum / float64(len(a.jobs)))
}

func (a *Aggregator) recomputeETALocked() {
	if a.started.IsZero() {
		return
	}
	total := float64(len(a.jobs))
	var done float64
	for _, e := range a.jobs {
		done += e.fraction
	}
	remaining := total - done
	if remaining <= 0 {
		a.lastETA = 0
		return
	}
	elapsed := a.now().Sub(a.started).Seconds()
	if elapsed <= 0 || done <= 0 {
		return
	}
	rate := done / elapsed
	eta := time.Duration(remaining / rate * float64(time.Second))
	if eta <= 0 {
		// Keep the last positive estimate while work remains.
		return
	}
	a.lastETA = eta
}

func (a *Aggregator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Total:     len(a.jobs),
		Fraction:  a.batchFractionLocked(),
		ETA:       a.lastETA,
		StartedAt: a.started,
		Jobs:      make([]JobProgress, 0, len(a.order)),
	}
	if !a.started.IsZero() {
		snap.Elapsed = a.now().Sub(a.started)
	}
	for _, id := range a.order {
		e := a.jobs[id]
		switch {
		case e.state.Terminal():
			snap.Completed++
		case e.state.Running():
			snap.Running++
		}
		snap.Jobs = append(snap.Jobs, JobProgress{
			ID:          e.id,
			Input:       e.input,
			Stage:       e.stage,
			State:       e.state,
			Fraction:    e.fraction,
			FramesDone:  e.framesDone,
			FramesTotal: e.framesTotal,
		})
	}
	sort.SliceStable(snap.Jobs, func(i, j int) bool { return snap.Jobs[i].Input < snap.Jobs[j].Input })
	snap.Terminated = snap.Total > 0 && snap.Completed == snap.Total
	return snap
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
