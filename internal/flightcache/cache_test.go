package flightcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGet_ConcurrentColdCallersShareOneFetch(t *testing.T) {
	c := New[string](Options{Name: "test"})
	release := make(chan struct{})
	var upstream atomic.Int32

	fetch := func(ctx context.Context) (string, error) {
		upstream.Add(1)
		<-release
		return "payload", nil
	}

	const n = 50
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), "schedule:group:G-1", time.Minute, fetch)
		}(i)
	}

	// Let every goroutine reach the flight before releasing it.
	require.Eventually(t, func() bool { return upstream.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), upstream.Load())
	require.Equal(t, int64(1), c.Calls())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "payload", results[i])
	}

	// Warm cache: no further upstream call.
	v, err := c.Get(context.Background(), "schedule:group:G-1", time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, "payload", v)
	require.Equal(t, int32(1), upstream.Load())
}

func TestGet_GlobalConcurrencyNeverExceedsLimit(t *testing.T) {
	lim := NewLimiter(3)
	a := New[int](Options{Name: "a", Limiter: lim})
	b := New[int](Options{Name: "b", Limiter: lim})

	var cur, maxSeen atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		n := cur.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		cur.Add(-1)
		return int(n), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := a
			if i%2 == 1 {
				c = b
			}
			_, err := c.Get(context.Background(), fmt.Sprintf("k%d", i), time.Minute, fetch)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, maxSeen.Load(), int32(3))
	require.LessOrEqual(t, lim.Peak(), 3)
	require.Equal(t, 0, lim.InFlight())
	require.Equal(t, int64(20), a.Calls())
	require.Equal(t, int64(20), b.Calls())
}

func TestGet_FailuresAreNotCached(t *testing.T) {
	c := New[string](Options{})
	boom := errors.New("boom")
	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.ErrorIs(t, err, boom)
	_, cached := c.Peek("k")
	require.False(t, cached)

	v, err := c.Get(context.Background(), "k", time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 2, calls)
}

func TestGet_EntryExpiresAfterTTL(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)}
	c := New[int](Options{Now: clk.Now})
	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, _ := c.Get(context.Background(), "k", 10*time.Minute, fetch)
	require.Equal(t, 1, v)
	clk.Advance(9 * time.Minute)
	v, _ = c.Get(context.Background(), "k", 10*time.Minute, fetch)
	require.Equal(t, 1, v)
	clk.Advance(time.Minute)
	v, _ = c.Get(context.Background(), "k", 10*time.Minute, fetch)
	require.Equal(t, 2, v)

	c.Invalidate("k")
	v, _ = c.Get(context.Background(), "k", 10*time.Minute, fetch)
	require.Equal(t, 3, v)

	c.Purge()
	require.Equal(t, 0, c.Stats().Entries)
}

func TestGet_CallerCancellationDoesNotCancelSharedFetch(t *testing.T) {
	c := New[string](Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value

	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
		}
		return "shared", nil
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx1, "k", time.Minute, fetch)
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		v, err := c.Get(context.Background(), "k", time.Minute, fetch)
		require.NoError(t, err)
		second <- v
	}()

	cancel1()
	require.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.Equal(t, "shared", <-second)
	require.Nil(t, fetchErr.Load(), "shared fetch context must not be cancelled by one caller")

	v, ok := c.Peek("k")
	require.True(t, ok)
	require.Equal(t, "shared", v)
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)}
	c := New[int](Options{Now: clk.Now})
	for i := 0; i < 10; i++ {
		_, err := c.Get(context.Background(), fmt.Sprintf("k%d", i), time.Second, func(context.Context) (int, error) { return i, nil })
		require.NoError(t, err)
	}
	require.Equal(t, 10, c.Stats().Entries)

	clk.Advance(time.Minute)
	for i := 0; i < sweepEvery; i++ {
		c.Peek("absent")
	}
	require.Equal(t, 0, c.Stats().Entries)
}

func TestLimiter_QueuedCallerHonoursContext(t *testing.T) {
	lim := NewLimiter(1)
	hold := make(chan struct{})
	go func() {
		_ = lim.Do(context.Background(), func() error { <-hold; return nil })
	}()
	require.Eventually(t, func() bool { return lim.InFlight() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := lim.Do(ctx, func() error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(hold)
	require.Eventually(t, func() bool { return lim.InFlight() == 0 }, time.Second, time.Millisecond)
	require.Equal(t, 1, lim.Limit())
	require.Equal(t, DefaultLimit, NewLimiter(0).Limit())
}
