// Package qps implements per-second throughput counting and request gating.
// A Counter is owned by a single worker; a RedisCounter shares the same
// per-second buckets between processes through Redis.
package qps

import (
	"context"
	"fmt"
	"time"
)

// Bucket retention for the in-memory counter.
const (
	// MaxBuckets is the number of tracked seconds that triggers pruning.
	MaxBuckets = 30

	// PruneBatch is the number of oldest buckets dropped per prune.
	PruneBatch = 10

	// WaitEpsilon is added to every Wait so the caller wakes up inside the next second.
	WaitEpsilon = 10 * time.Millisecond
)

// Limiter is the throttle contract used by the dispatcher's worker loop.
type Limiter interface {
	// Throttle blocks until fewer than limit attempts were recorded in the
	// current second. A limit <= 0 never blocks.
	Throttle(ctx context.Context, limit int) error

	// Record registers one completed attempt.
	Record(ctx context.Context, success bool)
}

// Summary is the lifetime throughput of a counter.
type Summary struct {
	Success int64
	Total   int64

	// SuccessRate is a percentage in [0, 100]. Zero when nothing was recorded.
	SuccessRate float64

	// AvgQPS is Total divided by the seconds elapsed since the counter was created.
	AvgQPS float64
}

// String renders the summary as "success/total SuccessRate: p AvgQPS: q".
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d SuccessRate: %.2f AvgQPS: %.2f", s.Success, s.Total, s.SuccessRate, s.AvgQPS)
}

func newSummary(success, fail int64, elapsed time.Duration) Summary {
	s := Summary{Success: success, Total: success + fail}
	if s.Total > 0 {
		s.SuccessRate = 100.0 * float64(s.Success) / float64(s.Total)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.AvgQPS = float64(s.Total) / secs
	}
	return s
}

// untilNextSecond returns the delay from now to the next whole second plus WaitEpsilon.
func untilNextSecond(now time.Time) time.Duration {
	next := now.Truncate(time.Second).Add(time.Second)
	return next.Sub(now) + WaitEpsilon
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
