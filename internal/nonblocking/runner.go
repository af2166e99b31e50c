// Package nonblocking runs best-effort side effects off the request path.
package nonblocking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lexpoint/leadforms/internal/observability/metrics"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// DefaultTimeout bounds a task started with a zero timeout.
const DefaultTimeout = 10 * time.Second

// Runner spawns fire-and-forget tasks. A task failure, timeout or panic is logged
// and counted but never reaches the caller.
type Runner struct {
	logger  *logging.Logger
	metrics *metrics.LeadMetrics
	wg      sync.WaitGroup
}

// NewRunner creates a runner. metrics may be nil.
func NewRunner(logger *logging.Logger, m *metrics.LeadMetrics) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{logger: logger, metrics: m}
}

// Go runs fn in its own goroutine with a fresh context bounded by timeout. The
// context is detached from any request so the task outlives the response.
func (r *Runner) Go(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := r.run(ctx, fn); err != nil {
			r.metrics.ObserveSideEffectFailure(name)
			r.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

func (r *Runner) run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("nonblocking: panic: %v", p)
		}
	}()
	if err := fn(ctx); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr == context.DeadlineExceeded {
		return fmt.Errorf("nonblocking: %w", ctxErr)
	}
	return nil
}

// Wait blocks until every started task returns or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
