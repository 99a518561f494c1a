package flightcache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/tbourn/go-timetable-notifier/internal/metrics"
)

// DefaultLimit is the global outbound concurrency used when none is set.
const DefaultLimit = 5

// Limiter caps outbound concurrency across every cache that shares it.
// Waiters are admitted in FIFO order.
type Limiter struct {
	sem      *semaphore.Weighted
	limit    int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter returns a limiter admitting at most n concurrent holders.
// n < 1 falls back to DefaultLimit.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = DefaultLimit
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), limit: int64(n)}
}

// Do runs fn while holding one slot. It returns ctx.Err() if ctx ends while
// queued.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	metrics.UpstreamInflight.Inc()
	defer func() {
		metrics.UpstreamInflight.Dec()
		l.inFlight.Add(-1)
		l.sem.Release(1)
	}()
	return fn()
}

// Limit returns the configured capacity.
func (l *Limiter) Limit() int { return int(l.limit) }

// InFlight returns the number of current holders.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak returns the highest number of simultaneous holders observed.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
