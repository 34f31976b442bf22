package agent

import (
	"sync"
	"time"
)

// runState is the mutable tracking record for one in-flight run. All access
// goes through the Registry mutex.
type runState struct {
	step           string
	progress       int
	itemsProcessed int
	itemsTotal     int
	startedAt      time.Time
	cancelled      bool
}

// Registry tracks in-flight discovery runs so progress can be polled and
// cancellation requested from outside the executing goroutine.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*runState
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*runState)}
}

func (r *Registry) register(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = &runState{
		step:      StepParsingPrompt,
		startedAt: time.Now().UTC(),
	}
}

func (r *Registry) update(runID, step string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.runs[runID]; ok {
		state.step = step
		state.progress = progress
	}
}

func (r *Registry) setItems(runID string, processed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.runs[runID]; ok {
		state.itemsProcessed = processed
		state.itemsTotal = total
	}
}

func (r *Registry) cancelled(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.runs[runID]
	return ok && state.cancelled
}

func (r *Registry) remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Cancel flags a run for cooperative cancellation. The pipeline observes the
// flag at its next checkpoint. Returns false when the run is not tracked.
func (r *Registry) Cancel(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.runs[runID]
	if !ok {
		return false
	}
	state.cancelled = true
	return true
}

// Progress returns a snapshot of a tracked run, or nil when the run is
// unknown (never started, or already finished).
func (r *Registry) Progress(runID string) *Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.runs[runID]
	if !ok {
		return nil
	}
	status := RunRunning
	if state.cancelled {
		status = RunCancelled
	}
	return &Progress{
		RunID:          runID,
		Status:         status,
		Progress:       state.progress,
		CurrentStep:    state.step,
		ItemsProcessed: state.itemsProcessed,
		ItemsTotal:     state.itemsTotal,
		StartedAt:      state.startedAt,
	}
}
