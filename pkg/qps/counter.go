package qps

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Counter tracks attempts per whole-second bucket for a single worker.
type Counter struct {
	mu      sync.Mutex
	now     func() time.Time
	start   time.Time
	success int64
	fail    int64
	buckets map[int64]int
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock replaces time.Now as the counter's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// New creates a counter whose lifetime starts now.
func New(opts ...Option) *Counter {
	c := &Counter{
		now:     time.Now,
		buckets: make(map[int64]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.now()
	return c
}

// Tick records one completed attempt in the current second's bucket.
func (c *Counter) Tick(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if success {
		c.success++
	} else {
		c.fail++
	}
	c.buckets[c.now().Unix()]++

	if len(c.buckets) > MaxBuckets {
		c.prune()
	}

	TicksTotal.WithLabelValues(outcome(success)).Inc()
}

// prune drops the PruneBatch oldest buckets. Caller holds c.mu.
func (c *Counter) prune() {
	keys := make([]int64, 0, len(c.buckets))
	for k := range c.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys[:PruneBatch] {
		delete(c.buckets, k)
	}
}

// QPS returns the attempts recorded so far in the current second.
func (c *Counter) QPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buckets[c.now().Unix()]
}

// Buckets returns the number of tracked seconds.
func (c *Counter) Buckets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// Wait blocks until just after the start of the next whole second.
func (c *Counter) Wait(ctx context.Context) error {
	return sleep(ctx, untilNextSecond(c.now()))
}

// Throttle waits second by second while the current bucket is at or above limit.
func (c *Counter) Throttle(ctx context.Context, limit int) error {
	for limit > 0 && c.QPS() >= limit {
		ThrottleWaits.Inc()
		if err := c.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Record implements Limiter.
func (c *Counter) Record(_ context.Context, success bool) {
	c.Tick(success)
}

// Summary returns lifetime success and throughput figures.
func (c *Counter) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newSummary(c.success, c.fail, c.now().Sub(c.start))
}
