package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTaskTimeout bounds one detached task.
const DefaultTaskTimeout = 15 * time.Second

// Tasks runs fire-and-forget work detached from the request that started it.
// Failures are the task's own business to log; panics are recovered here.
type Tasks struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewTasks creates a task runner. A non-positive timeout uses DefaultTaskTimeout.
func NewTasks(timeout time.Duration) *Tasks {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Tasks{timeout: timeout}
}

// Go runs fn in its own goroutine with a fresh context bounded by the task timeout.
func (t *Tasks) Go(op string, fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("op", op).Interface("panic", r).Msg("Detached task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every started task has returned.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
