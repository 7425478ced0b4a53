package qps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key layout for shared counters.
const (
	// RedisKeyPrefix prefixes every key written by a RedisCounter.
	RedisKeyPrefix = "qps"

	// BucketTTL bounds how long a per-second bucket lives in Redis.
	BucketTTL = 60 * time.Second
)

// RedisCounter is a Counter whose buckets live in Redis so that several
// processes can share one QPS ceiling.
type RedisCounter struct {
	redis  *redis.Client
	name   string
	logger zerolog.Logger
	now    func() time.Time
	start  time.Time
}

// NewRedisCounter creates a shared counter identified by name.
func NewRedisCounter(redisClient *redis.Client, name string, logger zerolog.Logger) *RedisCounter {
	return &RedisCounter{
		redis:  redisClient,
		name:   name,
		logger: logger,
		now:    time.Now,
		start:  time.Now(),
	}
}

func (r *RedisCounter) bucketKey(sec int64) string {
	return fmt.Sprintf("%s:%s:%d", RedisKeyPrefix, r.name, sec)
}

func (r *RedisCounter) totalKey(outcome string) string {
	return fmt.Sprintf("%s:%s:%s", RedisKeyPrefix, r.name, outcome)
}

// Tick records one attempt in the current second's bucket and the lifetime totals.
func (r *RedisCounter) Tick(ctx context.Context, success bool) error {
	key := r.bucketKey(r.now().Unix())

	pipe := r.redis.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, BucketTTL)
	pipe.Incr(ctx, r.totalKey(outcome(success)))

	if _, err := pipe.Exec(ctx); err != nil {
		StoreErrors.WithLabelValues("tick").Inc()
		return fmt.Errorf("record tick in redis: %w", err)
	}

	TicksTotal.WithLabelValues(outcome(success)).Inc()
	return nil
}

// QPS returns the attempts recorded by all sharers in the current second.
func (r *RedisCounter) QPS(ctx context.Context) (int, error) {
	n, err := r.redis.Get(ctx, r.bucketKey(r.now().Unix())).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return 0, fmt.Errorf("get qps bucket: %w", err)
	}
	return n, nil
}

// Wait blocks until just after the start of the next whole second.
func (r *RedisCounter) Wait(ctx context.Context) error {
	return sleep(ctx, untilNextSecond(r.now()))
}

// Throttle waits while the shared bucket for the current second is at or above limit.
func (r *RedisCounter) Throttle(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}
	for {
		n, err := r.QPS(ctx)
		if err != nil {
			return err
		}
		if n < limit {
			return nil
		}

		ThrottleWaits.Inc()
		r.logger.Debug().
			Str("counter", r.name).
			Int("qps", n).
			Int("limit", limit).
			Msg("Shared QPS limit reached, waiting for next second")

		if err := r.Wait(ctx); err != nil {
			return err
		}
	}
}

// Record implements Limiter. Redis errors are logged, not returned, so a
// flaky store never fails a task.
func (r *RedisCounter) Record(ctx context.Context, success bool) {
	if err := r.Tick(ctx, success); err != nil {
		r.logger.Warn().Err(err).Str("counter", r.name).Msg("Failed to record QPS tick")
	}
}

// Summary returns the lifetime totals of all sharers.
func (r *RedisCounter) Summary(ctx context.Context) (Summary, error) {
	success, err := r.total(ctx, "success")
	if err != nil {
		return Summary{}, err
	}
	fail, err := r.total(ctx, "fail")
	if err != nil {
		return Summary{}, err
	}
	return newSummary(success, fail, r.now().Sub(r.start)), nil
}

func (r *RedisCounter) total(ctx context.Context, outcome string) (int64, error) {
	n, err := r.redis.Get(ctx, r.totalKey(outcome)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return 0, fmt.Errorf("get %s total: %w", outcome, err)
	}
	return n, nil
}
