// Package scheduler coalesces redraw requests so that at most one GPU submission per pass kind is in flight and
// at most one is pending behind it.
package scheduler

import (
	"sync"
	"time"
)

// Frame is reported once per completed redraw.
type Frame struct {
	// Elapsed is the time spent executing the redraw.
	Elapsed time.Duration
	// ViewportDrawsQueued is the number of viewport redraw requests served by this frame.
	ViewportDrawsQueued int
	// MapDrawsQueued is the number of map redraw requests served by this frame.
	MapDrawsQueued int
	// Err is the error of the redraw, if any.
	Err error
}

// RenderScheduler composes a map task (bake then display) and a viewport task (display only).
// A map redraw implies a viewport redraw, so it supersedes any pending viewport request.
type RenderScheduler struct {
	mu       *sync.Mutex
	mapTask  *Task
	viewTask *Task
	onFrame  func(Frame)
	// absorbed counts the viewport requests folded into each map run, keyed by that run's future
	absorbed map[*Future]int
}

// NewRenderScheduler creates a RenderScheduler.
//
// Parameters:
//   - drawMap: work that re-bakes the map and redraws the viewport
//   - drawViewport: work that only redraws the viewport
//   - onFrame: optional callback invoked after each completed redraw, may be nil
//
// Returns:
//   - *RenderScheduler: the new scheduler
func NewRenderScheduler(drawMap, drawViewport Work, onFrame func(Frame)) *RenderScheduler {
	s := &RenderScheduler{
		mu:       &sync.Mutex{},
		onFrame:  onFrame,
		absorbed: make(map[*Future]int),
	}
	s.mapTask = NewTask(drawMap, WithOnComplete(func(r Run) {
		s.mu.Lock()
		absorbed := s.absorbed[r.future]
		delete(s.absorbed, r.future)
		s.mu.Unlock()
		s.emit(Frame{Elapsed: r.Elapsed, MapDrawsQueued: r.Requests, ViewportDrawsQueued: absorbed, Err: r.Err})
	}))
	s.viewTask = NewTask(drawViewport, WithOnComplete(func(r Run) {
		s.emit(Frame{Elapsed: r.Elapsed, ViewportDrawsQueued: r.Requests, Err: r.Err})
	}))
	return s
}

// RedrawMap requests a bake followed by a display. A pending viewport redraw is folded into it.
//
// Returns:
//   - *Future: resolves once the map redraw serving this request has been committed
func (s *RenderScheduler) RedrawMap() *Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.mapTask.Request()
	if n := s.viewTask.Absorb(f); n > 0 {
		s.absorbed[f] += n
	}
	return f
}

// RedrawViewport requests a display-only redraw. If a map redraw is already pending it is returned instead,
// since it will redraw the viewport after baking.
//
// Returns:
//   - *Future: resolves once the redraw serving this request has been committed
func (s *RenderScheduler) RedrawViewport() *Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.mapTask.Join(); ok {
		return f
	}
	return s.viewTask.Request()
}

// MapStats returns the counters of the map task.
func (s *RenderScheduler) MapStats() Stats {
	return s.mapTask.Stats()
}

// ViewportStats returns the counters of the viewport task.
func (s *RenderScheduler) ViewportStats() Stats {
	return s.viewTask.Stats()
}

// Idle reports whether neither task has work in flight.
func (s *RenderScheduler) Idle() bool {
	return s.mapTask.State() == Idle && s.viewTask.State() == Idle
}

func (s *RenderScheduler) emit(f Frame) {
	if s.onFrame != nil {
		s.onFrame(f)
	}
}
