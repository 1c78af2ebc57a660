// Package throttle bounds calls to a remote system by in-flight capacity and minimum spacing.
//
// One [Limiter] is created per remote system and passed explicitly to every caller.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Clock abstracts time for the limiter so tests can advance it by hand.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Limiter admits at most capacity concurrent calls, and starts them no closer together than spacing.
//
// Waiting callers suspend until admitted; they only fail when their context is cancelled.
type Limiter struct {
	capacity int64
	spacing  time.Duration
	sem      *semaphore.Weighted
	lim      *rate.Limiter
	clock    Clock
}

// New creates a Limiter. A capacity below 1 is treated as 1; a zero spacing disables spacing.
func New(capacity int64, spacing time.Duration, clock Clock) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if clock == nil {
		clock = RealClock{}
	}

	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}

	return &Limiter{
		capacity: capacity,
		spacing:  spacing,
		sem:      semaphore.NewWeighted(capacity),
		lim:      rate.NewLimiter(limit, 1),
		clock:    clock,
	}
}

// Capacity returns the maximum number of concurrent calls.
func (l *Limiter) Capacity() int64 { return l.capacity }

// Spacing returns the minimum interval between call starts.
func (l *Limiter) Spacing() time.Duration { return l.spacing }

// Acquire blocks until a slot is free and the spacing window has elapsed. The returned release must be called
// exactly once when the call completes.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	res := l.lim.ReserveN(now, 1)
	if !res.OK() {
		l.sem.Release(1)
		return nil, context.DeadlineExceeded
	}

	if delay := res.DelayFrom(now); delay > 0 {
		if err := l.clock.Sleep(ctx, delay); err != nil {
			res.CancelAt(l.clock.Now())
			l.sem.Release(1)
			return nil, err
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}

// Do runs fn under the limiter.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
