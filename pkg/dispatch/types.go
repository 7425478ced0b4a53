package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/unitools/pkg/qps"
)

// WorkerFunc processes a single task. data is shared, read-only worker context.
type WorkerFunc[C, T, R any] func(ctx context.Context, data C, task T) (R, error)

// Callback receives every Result Envelope in the dispatching goroutine.
type Callback[T, R any] func(env Envelope[T, R])

// Envelope is the outcome of one task.
type Envelope[T, R any] struct {
	Task    T
	Success bool

	// Value is the worker's return value. Zero when Success is false.
	Value R

	// Trace describes the failure. Empty when Success is true.
	Trace string
}

// Config holds dispatcher configuration.
type Config struct {
	// QPSLimit is the total attempts-per-second ceiling, divided evenly
	// between workers. Values <= 0 disable throttling.
	QPSLimit int

	// Concurrency is the number of workers. Values < 1 run every task
	// synchronously in the caller's goroutine.
	Concurrency int

	// PollInterval is the rest between two drains of the result channel.
	PollInterval time.Duration

	// Limiter, when set, is shared by all workers and throttled against the
	// full QPSLimit instead of a private per-worker Counter.
	Limiter qps.Limiter

	// Logger defaults to the global logger with component=dispatch.
	Logger *zerolog.Logger
}

// DefaultConfig returns a single-worker, unthrottled configuration.
func DefaultConfig() Config {
	return Config{
		QPSLimit:     -1,
		Concurrency:  1,
		PollInterval: 500 * time.Millisecond,
	}
}

// Report summarises a finished dispatch.
type Report struct {
	RunID     string
	Total     int
	Workers   int
	Succeeded int
	Failed    int

	// CallbackErrors counts callback invocations that panicked.
	CallbackErrors int

	Duration time.Duration
}

// Delivered is the number of envelopes handed to the callback.
func (r Report) Delivered() int {
	return r.Succeeded + r.Failed
}
