package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// State is the lifecycle state of a Task.
type State int

const (
	// Idle means no run is in flight.
	Idle State = iota
	// InFlight means exactly one run is executing and nothing is queued behind it.
	InFlight
	// InFlightWithPending means one run is executing and a single pending run is queued behind it.
	InFlightWithPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case InFlight:
		return "InFlight"
	case InFlightWithPending:
		return "InFlightWithPending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Work is a unit of work executed by a Task. It must block until the work is fully committed.
type Work func() error

// Run describes a completed execution of a Task's work.
type Run struct {
	// Elapsed is the wall time spent inside the work function.
	Elapsed time.Duration
	// Requests is the number of requests served by this run, including coalesced ones.
	Requests int
	// Err is the error returned by the work function.
	Err error

	future *Future
}

// Stats are the diagnostic counters of a Task.
type Stats struct {
	// Requested is the total number of Request calls.
	Requested int64
	// Coalesced is the number of requests merged into an already pending run.
	Coalesced int64
	// Submitted is the number of runs started.
	Submitted int64
	// Absorbed is the number of pending runs handed over to another Future.
	Absorbed int64
}

// Task is a single-slot debounced unit of work.
// At most one run is in flight and at most one is pending; further requests join the pending run.
// A pending run only starts after the in-flight run completes, so it always observes the latest requested state.
type Task struct {
	mu         *sync.Mutex
	work       Work
	onComplete func(Run)

	state         State
	pending       *Future
	pendingCount  int
	inFlightCount int
	stats         Stats
}

// TaskOption configures a Task at construction time.
type TaskOption func(*Task)

// WithOnComplete registers a callback invoked after every run, from the goroutine that executed it.
//
// Parameters:
//   - fn: the callback receiving the completed Run
//
// Returns:
//   - TaskOption: a function that applies the callback to a Task
func WithOnComplete(fn func(Run)) TaskOption {
	return func(t *Task) {
		t.onComplete = fn
	}
}

// NewTask creates a new idle Task for the given work.
//
// Parameters:
//   - work: the function executed for each run
//   - options: optional TaskOption functions
//
// Returns:
//   - *Task: the new task
func NewTask(work Work, options ...TaskOption) *Task {
	t := &Task{
		mu:   &sync.Mutex{},
		work: work,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Request asks for the work to run.
// If the task is idle the run starts immediately. If a run is in flight, the request becomes the pending run,
// or joins it when one is already pending.
//
// Returns:
//   - *Future: the completion handle of the run that will serve this request
func (t *Task) Request() *Future {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Requested++
	switch t.state {
	case Idle:
		f := newFuture()
		t.state = InFlight
		t.inFlightCount = 1
		t.stats.Submitted++
		go t.run(f)
		return f
	case InFlight:
		t.pending = newFuture()
		t.pendingCount = 1
		t.state = InFlightWithPending
		return t.pending
	default:
		t.pendingCount++
		t.stats.Coalesced++
		return t.pending
	}
}

// Pending returns the pending Future, or nil when nothing is queued.
func (t *Task) Pending() *Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Join merges a request into the pending run if one exists and reports whether it did.
// Unlike Request it never starts a new run.
func (t *Task) Join() (*Future, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return nil, false
	}
	t.stats.Requested++
	t.stats.Coalesced++
	t.pendingCount++
	return t.pending, true
}

// Absorb removes the pending run, if any, and resolves it when other completes.
// Used when another unit of work implies this one.
//
// Parameters:
//   - other: the Future that supersedes the pending run
//
// Returns:
//   - int: the number of requests that were absorbed, zero if nothing was pending
func (t *Task) Absorb(other *Future) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return 0
	}
	p, n := t.pending, t.pendingCount
	t.pending = nil
	t.pendingCount = 0
	t.state = InFlight
	t.stats.Absorbed++
	p.follow(other)
	return n
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns a copy of the diagnostic counters.
func (t *Task) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Task) run(f *Future) {
	for {
		t.mu.Lock()
		requests := t.inFlightCount
		t.mu.Unlock()

		start := time.Now()
		err := t.execute()
		r := Run{Elapsed: time.Since(start), Requests: requests, Err: err, future: f}
		f.resolve(err)
		if t.onComplete != nil {
			t.onComplete(r)
		}

		t.mu.Lock()
		if t.pending == nil {
			t.state = Idle
			t.inFlightCount = 0
			t.mu.Unlock()
			return
		}
		f = t.pending
		t.inFlightCount = t.pendingCount
		t.pending = nil
		t.pendingCount = 0
		t.state = InFlight
		t.stats.Submitted++
		t.mu.Unlock()
	}
}

func (t *Task) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scheduler] task recovered from panic: %v", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.work()
}
