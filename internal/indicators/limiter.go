package indicators

import (
	"context"
	"sync"
	"time"

	"dexalert/internal/metrics"
)

// Default indicator budget
const (
	DefaultBudget   = 90
	DefaultCooldown = 60 * time.Second
)

// Window is a fixed-window call budget shared by every caller in the process.
// Once the budget is spent the next caller sleeps a full cooldown, resets the
// count and proceeds; everyone else queues behind it.
type Window struct {
	budget   int
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	metrics  *metrics.Registry

	mu   sync.Mutex
	used int
}

// NewWindow creates a limiter allowing budget calls per cooldown period
func NewWindow(budget int, cooldown time.Duration, m *metrics.Registry) *Window {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Window{
		budget:   budget,
		cooldown: cooldown,
		sleep:    sleepContext,
		metrics:  m,
	}
}

// Acquire takes one call from the budget, blocking through the cooldown when it is exhausted
func (w *Window) Acquire(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.used >= w.budget {
		w.metrics.RecordLimiterWait()
		if err := w.sleep(ctx, w.cooldown); err != nil {
			return err
		}
		w.used = 0
	}
	w.used++
	return nil
}

// Used reports how many calls the current window has consumed
func (w *Window) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.used
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
