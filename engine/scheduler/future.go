package scheduler

import (
	"context"
	"sync"
)

// Future is the completion handle of a scheduled run. Several requests that were coalesced into the same run share one Future.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that has already completed with err.
func Resolved(err error) *Future {
	f := newFuture()
	f.resolve(err)
	return f
}

func (f *Future) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the run backing this Future has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the error of the completed run. It is only meaningful after Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the run completes or ctx is done.
// Abandoning the wait does not cancel the run.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - error: the run's error, or ctx.Err() if the context ended first
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// follow resolves f with other's result once other completes.
func (f *Future) follow(other *Future) {
	go func() {
		<-other.done
		f.resolve(other.err)
	}()
}
