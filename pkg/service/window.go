package service

import (
	"context"
	"sync"
	"time"
)

// windowSlack is added to the period so scheduling delay between admission and dispatch
// cannot squeeze an extra call into a window.
const windowSlack = time.Millisecond

// window admits at most len(times) calls in any rolling period.
type window struct {
	mu     sync.Mutex
	period time.Duration
	times  []time.Time // ring of the last admissions, oldest at next
	next   int
}

func newWindow(n int, period time.Duration) *window {
	return &window{period: period + windowSlack, times: make([]time.Time, n)}
}

// wait blocks until one more call fits in the window and records it.
func (w *window) wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := time.Now()
		oldest := w.times[w.next]
		if oldest.IsZero() || now.Sub(oldest) >= w.period {
			w.times[w.next] = now
			w.next = (w.next + 1) % len(w.times)
			w.mu.Unlock()
			return nil
		}
		delay := w.period - now.Sub(oldest)
		w.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
