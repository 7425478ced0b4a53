// Command batch-runner fetches a list of URLs with bounded concurrency and a
// QPS ceiling, printing progress and recording outcomes.
//
// Usage:
//
//	batch-runner -input urls.txt -concurrency 4 -qps 10
//	cat urls.txt | REDIS_URL=localhost:6379 batch-runner -resume
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/unitools/pkg/clock"
	"github.com/Sternrassler/unitools/pkg/console"
	"github.com/Sternrassler/unitools/pkg/dbconn"
	"github.com/Sternrassler/unitools/pkg/dispatch"
	"github.com/Sternrassler/unitools/pkg/fetch"
	"github.com/Sternrassler/unitools/pkg/logging"
	"github.com/Sternrassler/unitools/pkg/metrics"
	"github.com/Sternrassler/unitools/pkg/qps"
	"github.com/Sternrassler/unitools/pkg/store"
)

// etaBarLength is the width of the "[###...]" part of the progress line.
const etaBarLength = 20

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "batch-runner: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Stdin, os.Stderr)
	stop()

	if err != nil {
		log.Error().Err(err).Msg("Batch run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, stdin io.Reader, progressOut io.Writer) error {
	logger, err := logging.Setup(logging.Config{
		Level:    logging.ParseLevel(cfg.Log.Level),
		Pretty:   cfg.Log.Pretty,
		Output:   os.Stderr,
		File:     cfg.Log.File,
		FileOnly: cfg.Log.FileOnly,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logging.Close()
	logger = logger.With().Str("component", "batch-runner").Logger()

	tasks, err := readInput(cfg.Input, stdin)
	if err != nil {
		return err
	}

	dispatchLogger := logging.NewLogger("dispatch")
	dcfg := dispatch.Config{
		QPSLimit:     cfg.QPSLimit,
		Concurrency:  cfg.Concurrency,
		PollInterval: cfg.PollInterval,
		Logger:       &dispatchLogger,
	}
	rec := &recorder{
		namespace: cfg.Namespace,
		table:     cfg.MySQL.Table,
		logger:    logger,
	}

	var (
		redisClient *redis.Client
		shared      *qps.RedisCounter
	)
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")

		shared = qps.NewRedisCounter(redisClient, cfg.Namespace, logging.NewLogger("qps"))
		dcfg.Limiter = shared
		rec.store = store.NewManager(redisClient, cfg.ResultTTL)

		if cfg.Resume {
			pending, err := rec.store.Pending(ctx, cfg.Namespace, tasks)
			if err != nil {
				return fmt.Errorf("resume: %w", err)
			}
			logger.Info().
				Int("skipped", len(tasks)-len(pending)).
				Int("pending", len(pending)).
				Msg("Resuming batch")
			tasks = pending
		}
	}

	if cfg.MySQL.Enabled() {
		dbLogger := logging.NewLogger("dbconn")
		conn, err := dbconn.Open(ctx, cfg.MySQL.DBConfig(), &dbLogger)
		if err != nil {
			return err
		}
		defer conn.Close()
		rec.db = conn
	}

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, redisClient, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	fcfg := fetch.DefaultConfig(cfg.UserAgent)
	fcfg.Timeout = cfg.Timeout
	fetcher, err := fetch.New(fcfg)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	progress := console.NewWriter(progressOut)
	eta := console.NewETA(len(tasks))

	logger.Info().
		Int("tasks", len(tasks)).
		Int("concurrency", cfg.Concurrency).
		Int("qps_limit", cfg.QPSLimit).
		Msg("Starting batch")

	report, err := dispatch.Dispatch(ctx, fetch.Worker, fetcher, tasks,
		func(env dispatch.Envelope[string, []byte]) {
			eta.Add(1)
			_ = progress.Write(eta.String(etaBarLength))
			if !env.Success {
				logger.Warn().Str("url", env.Task).Str("trace", env.Trace).Msg("Fetch failed")
			}
			rec.record(ctx, env)
		}, dcfg)

	_ = progress.WriteLine(eta.String(etaBarLength), false)

	event := logger.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("callback_errors", report.CallbackErrors).
		Str("duration", clock.FormatDuration(report.Duration))
	if shared != nil {
		if summary, serr := shared.Summary(context.Background()); serr == nil {
			event = event.Str("shared_qps", summary.String())
		}
	}
	event.Msg("Batch finished")

	return err
}

// readInput reads one task per line from path, or from stdin when path is
// empty. Blank lines and lines starting with '#' are skipped.
func readInput(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var tasks []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return tasks, nil
}

func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func startMetricsServer(addr string, redisClient *redis.Client, logger zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(redisClient),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return srv
}

func newMux(redisClient *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 when the configured Redis is unreachable.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
