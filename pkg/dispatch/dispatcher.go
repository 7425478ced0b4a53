package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/unitools/pkg/qps"
)

// Dispatch executes fn for every task and delivers each outcome to cb in the
// calling goroutine. See the package documentation for the execution model.
//
// The returned error is non-nil only when ctx was cancelled; tasks that had
// not started by then produce no envelope.
func Dispatch[C, T, R any](
	ctx context.Context,
	fn WorkerFunc[C, T, R],
	data C,
	tasks []T,
	cb Callback[T, R],
	cfg Config,
) (Report, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cb == nil {
		cb = func(Envelope[T, R]) {}
	}

	report := Report{
		RunID: uuid.NewString(),
		Total: len(tasks),
	}

	base := log.With().Str("component", "dispatch").Logger()
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	logger := base.With().Str("run_id", report.RunID).Logger()

	start := time.Now()
	deliver := func(env Envelope[T, R]) {
		if env.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		if err := safeCallback(cb, env); err != nil {
			report.CallbackErrors++
			callbackErrorsTotal.Inc()
			logger.Error().Err(err).Msg("Callback failed")
		}
	}

	var err error
	if cfg.Concurrency < 1 {
		err = dispatchSync(ctx, fn, data, tasks, cfg, deliver, logger)
	} else {
		report.Workers, err = dispatchWorkers(ctx, fn, data, tasks, cfg, deliver, logger)
	}
	report.Duration = time.Since(start)

	event := logger.Info()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Int("tasks", report.Total).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("callback_errors", report.CallbackErrors).
		Dur("duration", report.Duration).
		Msg("Dispatch complete")

	return report, err
}

// dispatchSync runs the worker loop in the caller's goroutine with results
// routed straight into the callback.
func dispatchSync[C, T, R any](
	ctx context.Context,
	fn WorkerFunc[C, T, R],
	data C,
	tasks []T,
	cfg Config,
	deliver func(Envelope[T, R]),
	logger zerolog.Logger,
) error {
	logger.Warn().
		Int("concurrency", cfg.Concurrency).
		Msg("Concurrency < 1, using synchronous request-handle mode")

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = qps.New()
	}
	return runWorker(ctx, 0, fn, data, tasks, cfg.QPSLimit, limiter, deliver, logger)
}

// dispatchWorkers fans tasks out to cfg.Concurrency workers and pumps their
// results to deliver until every worker has exited. Returns the number of
// workers started.
func dispatchWorkers[C, T, R any](
	ctx context.Context,
	fn WorkerFunc[C, T, R],
	data C,
	tasks []T,
	cfg Config,
	deliver func(Envelope[T, R]),
	logger zerolog.Logger,
) (int, error) {
	limit := PerWorkerLimit(cfg.QPSLimit, cfg.Concurrency)
	if cfg.Limiter != nil {
		limit = cfg.QPSLimit
	}

	logger.Info().
		Int("tasks", len(tasks)).
		Int("concurrency", cfg.Concurrency).
		Int("qps_limit", cfg.QPSLimit).
		Int("worker_qps_limit", limit).
		Msg("Starting dispatch")

	// Every task emits at most one envelope, so workers never block on send.
	results := make(chan Envelope[T, R], len(tasks))
	emit := func(env Envelope[T, R]) { results <- env }

	var g errgroup.Group
	started := 0
	for i, part := range Partition(tasks, cfg.Concurrency) {
		if len(part) == 0 {
			continue
		}
		workerID, part := i, part

		limiter := cfg.Limiter
		if limiter == nil {
			limiter = qps.New()
		}

		workersActive.Inc()
		started++
		g.Go(func() error {
			defer workersActive.Dec()
			return runWorker(ctx, workerID, fn, data, part, limit, limiter, emit, logger)
		})

		logger.Debug().
			Int("worker_id", workerID).
			Int("tasks", len(part)).
			Msg("Worker started")
	}

	var werr error
	done := make(chan struct{})
	go func() {
		werr = g.Wait()
		close(done)
	}()

	drain := func() {
		for {
			select {
			case env := <-results:
				deliver(env)
			default:
				return
			}
		}
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}

		drain()

		if !finished {
			select {
			case <-ticker.C:
			case <-done:
			}
		}
	}

	// All workers joined; anything still buffered is delivered now.
	drain()

	return started, werr
}

// safeCallback invokes cb, converting a panic into an error.
func safeCallback[T, R any](cb Callback[T, R], env Envelope[T, R]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v\n%s", r, debug.Stack())
		}
	}()
	cb(env)
	return nil
}
