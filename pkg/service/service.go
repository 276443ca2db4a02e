// Package service wraps request/response functions with the throttling policies used for
// every upstream: a bounded admission buffer, an in-flight cap and an optional token bucket.
//
//	buffer(N) -> concurrency(M) -> rate(R per period) -> inner
//
// All waits honour the caller's context; a cancelled caller gives back its slot immediately.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Service is a single request/response call.
type Service[Req, Resp any] interface {
	Call(ctx context.Context, req Req) (Resp, error)
}

// Func adapts a plain function to Service.
type Func[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Call implements Service.
func (f Func[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}

// Opts is the set of throttling options for a Limited service.
type Opts struct {
	// Buffer is how many callers may wait for an in-flight slot.
	Buffer int
	// Concurrency caps in-flight calls to the inner service.
	Concurrency int
	// Rate is the number of calls allowed per Period. Zero disables rate limiting.
	Rate int
	// Period defaults to one second.
	Period time.Duration
}

// DefaultOpts returns the limits used for the chain RPC and the stats service.
func DefaultOpts(reqPerSecond int) Opts {
	return Opts{Buffer: 100, Concurrency: 50, Rate: reqPerSecond, Period: time.Second}
}

// Limited is a throttled Service. It is safe for concurrent use and meant to be shared.
type Limited[Req, Resp any] struct {
	inner    Service[Req, Resp]
	buffer   *semaphore.Weighted
	inFlight *semaphore.Weighted
	limiter  *rate.Limiter
	window   *window

	dispatched atomic.Uint64
}

// New stacks the throttling policies in front of inner.
func New[Req, Resp any](inner Service[Req, Resp], o Opts) *Limited[Req, Resp] {
	if o.Buffer <= 0 {
		o.Buffer = 100
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 50
	}
	if o.Period <= 0 {
		o.Period = time.Second
	}

	l := &Limited[Req, Resp]{
		inner:    inner,
		buffer:   semaphore.NewWeighted(int64(o.Buffer)),
		inFlight: semaphore.NewWeighted(int64(o.Concurrency)),
	}
	if o.Rate > 0 {
		// The limiter paces calls evenly; the window enforces the hard cap of Rate per rolling Period.
		l.limiter = rate.NewLimiter(rate.Every(o.Period/time.Duration(o.Rate)), 1)
		l.window = newWindow(o.Rate, o.Period)
	}
	return l
}

// Call waits for a buffer slot, then an in-flight slot, then a rate token, and dispatches.
func (l *Limited[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	if err := l.buffer.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	if err := l.inFlight.Acquire(ctx, 1); err != nil {
		l.buffer.Release(1)
		return zero, err
	}
	l.buffer.Release(1)
	defer l.inFlight.Release(1)

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		if err := l.window.wait(ctx); err != nil {
			return zero, err
		}
	}

	l.dispatched.Add(1)
	return l.inner.Call(ctx, req)
}

// Dispatched reports how many calls reached the inner service.
func (l *Limited[Req, Resp]) Dispatched() uint64 {
	return l.dispatched.Load()
}
