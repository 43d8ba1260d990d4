// Package archivetask is a fire-and-forget registry of background archive
// moves. The coordinator schedules a move after a success row commits;
// nothing downstream waits on it except process shutdown, which drains the
// registry for a bounded window.
package archivetask

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry tracks in-flight archive-move goroutines. It is owned by the
// composition root and passed down to the coordinator, never held as a
// package-level global.
type Registry struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New builds a Registry that allows at most maxConcurrent archive moves to
// run at once.
func New(maxConcurrent int, logger *zap.Logger) *Registry {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Registry{
		sem:    make(chan struct{}, maxConcurrent),
		logger: logger,
	}
}

// Go schedules fn to run in its own goroutine, bounded by the registry's
// concurrency limit. Go does not block past acquiring a semaphore slot; if
// the registry is already saturated, the caller's goroutine blocks until a
// slot frees up, exerting natural backpressure on the run loop.
func (r *Registry) Go(ctx context.Context, fileName string, fn func(ctx context.Context) error) {
	r.sem <- struct{}{}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()

		if err := fn(ctx); err != nil {
			r.logger.Warn("archive move failed", zap.String("file_name", fileName), zap.Error(err))
		}
	}()
}

// Shutdown waits up to timeout for all scheduled moves to finish. Anything
// still running when the window expires is abandoned; correctness is
// unaffected because the file's terminal row is already committed before
// the move is scheduled.
func (r *Registry) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("archive task registry drained cleanly")
	case <-time.After(timeout):
		r.logger.Warn("archive task registry shutdown window expired, abandoning in-flight moves")
	}
}
