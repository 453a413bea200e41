package job

import "strings"

// State is a Job lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateAnalyzing  State = "analyzing"
	StateRewrapping State = "rewrapping"
	StateProcessing State = "processing"
	StateFinalizing State = "finalizing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateSkipped    State = "skipped"
	StateCancelled  State = "cancelled"
)

// StageID names a pipeline stage.
type StageID string

const (
	StageAnalyze  StageID = "analyze"
	StageRewrap   StageID = "rewrap"
	StageProcess  StageID = "process"
	StageFinalize StageID = "finalize"
)

var stageOrder = []StageID{StageAnalyze, StageRewrap, StageProcess, StageFinalize}

var runningStates = map[StageID]State{
	StageAnalyze:  StateAnalyzing,
	StageRewrap:   StateRewrapping,
	StageProcess:  StateProcessing,
	StageFinalize: StateFinalizing,
}

// forward lists the single non-terminal successor of each state.
var forward = map[State]State{
	StatePending:    StateAnalyzing,
	StateAnalyzing:  StateRewrapping,
	StateRewrapping: StateProcessing,
	StateProcessing: StateFinalizing,
	StateFinalizing: StateSucceeded,
}

// Stages returns the pipeline stages in execution order.
func Stages() []StageID {
	out := make([]StageID, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Index returns the stage's position in the pipeline, or -1.
func (s StageID) Index() int {
	for i, id := range stageOrder {
		if id == s {
			return i
		}
	}
	return -1
}

// RunningState is the Job state while this stage executes.
func (s StageID) RunningState() State {
	return runningStates[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateCancelled:
		return true
	}
	return false
}

// Running reports whether a stage is executing.
func (s State) Running() bool {
	switch s {
	case StateAnalyzing, StateRewrapping, StateProcessing, StateFinalizing:
		return true
	}
	return false
}

// ParseState converts a persisted string into a known State.
func ParseState(value string) (State, bool) {
	s := State(strings.ToLower(strings.TrimSpace(value)))
	if s == StatePending || s.Running() || s.Terminal() {
		return s, true
	}
	return "", false
}

// CanTransition reports whether from -> to moves the lifecycle forward.
// Failed and Cancelled are reachable from any non-terminal state; Skipped
// only from Analyzing.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateFailed, StateCancelled:
		return true
	case StateSkipped:
		return from == StateAnalyzing
	}
	return forward[from] == to
}
