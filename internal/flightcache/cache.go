// Package flightcache provides a keyed, TTL-bound cache whose misses are
// collapsed into a single upstream fetch per key.
//
// Concurrent Get calls for the same cold key share one fetch. The fetch runs
// under a Limiter that bounds outbound concurrency across all caches sharing
// it, and is detached from the caller's cancellation: a caller that gives up
// stops waiting, while the fetch completes for everyone else. Successful
// results are stored for the requested TTL; failures are never cached.
package flightcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-timetable-notifier/internal/metrics"
)

// sweepEvery is the number of lookups between opportunistic sweeps of
// expired entries.
const sweepEvery = 1024

// Fetcher loads the value for a key from upstream.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Options configures a Cache.
type Options struct {
	// Name labels the cache in metrics.
	Name string
	// Limiter bounds upstream concurrency. A private limiter with
	// DefaultLimit slots is created when nil.
	Limiter *Limiter
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of a cache.
type Stats struct {
	// Calls is the number of upstream fetches started.
	Calls int64 `json:"calls"`
	// InFlight is the number of fetches holding a limiter slot.
	InFlight int `json:"in_flight"`
	// PeakInFlight is the highest InFlight observed on the shared limiter.
	PeakInFlight int `json:"peak_in_flight"`
	// Entries is the number of stored entries, expired ones included until swept.
	Entries int `json:"entries"`
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a single-flight TTL cache. The zero value is not usable; use New.
type Cache[V any] struct {
	name    string
	entries *xsync.Map[string, entry[V]]
	flights singleflight.Group
	limiter *Limiter
	now     func() time.Time

	calls   atomic.Int64
	lookups atomic.Uint64
}

// New returns an empty cache.
func New[V any](opts Options) *Cache[V] {
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(DefaultLimit)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Cache[V]{
		name:    opts.Name,
		entries: xsync.NewMap[string, entry[V]](),
		limiter: opts.Limiter,
		now:     opts.Now,
	}
}

// Get returns the cached value for key, or runs fetch once for all
// concurrent callers and caches a successful result for ttl. A ttl <= 0
// disables storing but still collapses concurrent fetches.
func (c *Cache[V]) Get(ctx context.Context, key string, ttl time.Duration, fetch Fetcher[V]) (V, error) {
	if v, ok := c.load(key); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		// A flight that just finished may have filled the entry between our
		// miss and this flight starting.
		if v, ok := c.load(key); ok {
			return v, nil
		}
		var v V
		err := c.limiter.Do(detached, func() error {
			c.calls.Add(1)
			var ferr error
			v, ferr = fetch(detached)
			return ferr
		})
		if err != nil {
			return v, err
		}
		if ttl > 0 {
			c.entries.Store(key, entry[V]{value: v, expiresAt: c.now().Add(ttl)})
		}
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		result := "miss"
		if res.Shared {
			result = "shared"
		}
		metrics.CacheLookups.WithLabelValues(c.name, result).Inc()
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("flightcache: unexpected value type %T", res.Val)
		}
		return v, nil
	}
}

// Peek returns a live cached value without fetching.
func (c *Cache[V]) Peek(key string) (V, bool) { return c.load(key) }

// Invalidate drops the entry for key. An in-flight fetch is not affected and
// will store its result when it completes.
func (c *Cache[V]) Invalidate(key string) { c.entries.Delete(key) }

// Purge drops every entry.
func (c *Cache[V]) Purge() { c.entries.Clear() }

// Calls returns the number of upstream fetches started.
func (c *Cache[V]) Calls() int64 { return c.calls.Load() }

// Stats returns counters for the cache and its limiter.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Calls:        c.calls.Load(),
		InFlight:     c.limiter.InFlight(),
		PeakInFlight: c.limiter.Peak(),
		Entries:      c.entries.Size(),
	}
}

func (c *Cache[V]) load(key string) (V, bool) {
	if c.lookups.Add(1)%sweepEvery == 0 {
		c.sweep()
	}
	e, ok := c.entries.Load(key)
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) sweep() {
	now := c.now()
	c.entries.Range(func(k string, e entry[V]) bool {
		if now.Before(e.expiresAt) {
			return true
		}
		// Re-check under the bucket lock so a concurrent refresh survives.
		c.entries.Compute(k, func(old entry[V], loaded bool) (entry[V], xsync.ComputeOp) {
			if loaded && !now.Before(old.expiresAt) {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return true
	})
}
