package engine

import (
	"fmt"
	"log"
	"runtime"
	"sync"
)

// gpuJob is a closure run on the worker with its result channel.
type gpuJob struct {
	fn     func() error
	result chan error
}

// gpuWorker owns the GPU context. Every GPU call of an engine runs on its single goroutine, which is locked to
// one OS thread for its whole life.
type gpuWorker struct {
	jobs      chan gpuJob
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newGPUWorker() *gpuWorker {
	w := &gpuWorker{
		jobs: make(chan gpuJob),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *gpuWorker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			job.result <- w.execute(job.fn)
		}
	}
}

// execute runs fn, turning a panic into an error so one bad job does not take down the worker.
func (w *gpuWorker) execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] gpu worker recovered from panic: %v", r)
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()
	return fn()
}

// Do runs fn on the worker and waits for it. It must not be called from inside a job.
//
// Parameters:
//   - fn: the GPU work
//
// Returns:
//   - error: the error of fn, ErrWorkerPanic, or ErrClosed once the worker has stopped
func (w *gpuWorker) Do(fn func() error) error {
	job := gpuJob{fn: fn, result: make(chan error, 1)}
	select {
	case w.jobs <- job:
	case <-w.quit:
		return ErrClosed
	}
	select {
	case err := <-job.result:
		return err
	case <-w.done:
		select {
		case err := <-job.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close stops the worker after the running job, if any, and waits for it to exit.
func (w *gpuWorker) Close() {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
}
