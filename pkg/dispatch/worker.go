package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/unitools/pkg/qps"
)

// Partition splits tasks into n contiguous chunks of ceil(len/n) tasks.
// Trailing chunks may be shorter or empty. n < 1 is treated as 1.
func Partition[T any](tasks []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	size := (len(tasks) + n - 1) / n

	parts := make([][]T, n)
	for i := range parts {
		lo := min(i*size, len(tasks))
		hi := min(lo+size, len(tasks))
		parts[i] = tasks[lo:hi]
	}
	return parts
}

// PerWorkerLimit divides a total QPS ceiling between n workers.
// Returns -1 (unlimited) when total <= 0 and never less than 1 otherwise.
func PerWorkerLimit(total, n int) int {
	if total <= 0 {
		return -1
	}
	if n < 1 {
		return total
	}
	if limit := total / n; limit > 0 {
		return limit
	}
	return 1
}

// runWorker processes tasks in order, throttled by limiter, and emits one
// envelope per task. It only stops early when ctx is done.
func runWorker[C, T, R any](
	ctx context.Context,
	workerID int,
	fn WorkerFunc[C, T, R],
	data C,
	tasks []T,
	limit int,
	limiter qps.Limiter,
	emit func(Envelope[T, R]),
	logger zerolog.Logger,
) error {
	processed := 0

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			logger.Debug().
				Int("worker_id", workerID).
				Int("tasks_processed", processed).
				Msg("Worker stopping (context cancelled)")
			return err
		}

		if err := limiter.Throttle(ctx, limit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Msg("Throttle failed, continuing without limit for this task")
		}

		start := time.Now()
		env := invoke(ctx, fn, data, task)
		taskDuration.Observe(time.Since(start).Seconds())

		limiter.Record(ctx, env.Success)
		if env.Success {
			tasksTotal.WithLabelValues("success").Inc()
		} else {
			tasksTotal.WithLabelValues("fail").Inc()
		}

		emit(env)
		processed++
	}

	if processed > 0 {
		logger.Debug().
			Int("worker_id", workerID).
			Int("tasks_processed", processed).
			Msg("Worker completed")
	}
	return nil
}

// invoke runs fn for one task, converting returned errors and panics into
// failed envelopes.
func invoke[C, T, R any](ctx context.Context, fn WorkerFunc[C, T, R], data C, task T) (env Envelope[T, R]) {
	env.Task = task

	defer func() {
		if r := recover(); r != nil {
			var zero R
			env.Success = false
			env.Value = zero
			env.Trace = fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	value, err := fn(ctx, data, task)
	if err != nil {
		env.Trace = formatTrace(err)
		return env
	}

	env.Success = true
	env.Value = value
	return env
}

func formatTrace(err error) string {
	trace := fmt.Sprintf("%+v", err)
	if trace == "" {
		return "unknown error"
	}
	return trace
}
