package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobProcessor runs one pass of background work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor once at start, then on every poll tick and, when a wake
// channel is set, shortly after each wake signal.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	wake         <-chan struct{}
	settle       time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
	stopOnce     sync.Once
}

// Option configures a Worker.
type Option func(*Worker)

// WithWake runs a pass once wake has been quiet for settle. A burst of folder
// events, such as a large report being copied in, then costs a single re-ingest.
func WithWake(wake <-chan struct{}, settle time.Duration) Option {
	return func(w *Worker) {
		w.wake = wake
		w.settle = settle
	}
}

// NewWorker creates a Worker polling every pollInterval.
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration, opts ...Option) *Worker {
	w := &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs one pass immediately, then loops until ctx is cancelled or Stop is
// called. It blocks; run it in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	settle := time.NewTimer(w.settle)
	settle.Stop()
	defer settle.Stop()

	log.Printf("%s: worker started with poll interval %v", w.name, w.pollInterval)
	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s: worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.run(ctx)
		case <-w.wake:
			settle.Reset(w.settle)
		case <-settle.C:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("%s: error processing jobs: %v", w.name, err)
	}
}

// Stop signals the loop and waits for the current pass to finish. Safe to call more
// than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
	log.Printf("%s: worker shutdown complete", w.name)
}
