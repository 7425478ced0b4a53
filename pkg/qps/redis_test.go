package qps

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestRedisCounter_TickAndQPS(t *testing.T) {
	mr, client := setupMiniRedis(t)
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()

	clock := newFakeClock()
	counter := NewRedisCounter(client, "test", logger)
	counter.now = clock.Now

	for i := 0; i < 3; i++ {
		if err := counter.Tick(ctx, i != 2); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	got, err := counter.QPS(ctx)
	if err != nil {
		t.Fatalf("QPS() error = %v", err)
	}
	if got != 3 {
		t.Errorf("QPS() = %d, want 3", got)
	}

	key := counter.bucketKey(clock.Now().Unix())
	if ttl := mr.TTL(key); ttl <= 0 || ttl > BucketTTL {
		t.Errorf("bucket TTL = %v, want (0, %v]", ttl, BucketTTL)
	}

	clock.Advance(time.Second)
	got, err = counter.QPS(ctx)
	if err != nil {
		t.Fatalf("QPS() error = %v", err)
	}
	if got != 0 {
		t.Errorf("QPS() in new second = %d, want 0", got)
	}

	summary, err := counter.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Success != 2 || summary.Total != 3 {
		t.Errorf("Summary() = %d/%d, want 2/3", summary.Success, summary.Total)
	}
}

func TestRedisCounter_SharedBetweenInstances(t *testing.T) {
	_, client := setupMiniRedis(t)
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()

	clock := newFakeClock()
	a := NewRedisCounter(client, "shared", logger)
	b := NewRedisCounter(client, "shared", logger)
	a.now, b.now = clock.Now, clock.Now

	a.Record(ctx, true)
	b.Record(ctx, true)

	got, err := a.QPS(ctx)
	if err != nil {
		t.Fatalf("QPS() error = %v", err)
	}
	if got != 2 {
		t.Errorf("QPS() = %d, want 2 (ticks from both instances)", got)
	}
}

func TestRedisCounter_ThrottleNoLimit(t *testing.T) {
	_, client := setupMiniRedis(t)
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	counter := NewRedisCounter(client, "nolimit", logger)
	for i := 0; i < 10; i++ {
		counter.Record(context.Background(), true)
	}

	if err := counter.Throttle(context.Background(), 0); err != nil {
		t.Errorf("Throttle(0) error = %v", err)
	}
}

func TestRedisCounter_ConnectionError(t *testing.T) {
	mr, client := setupMiniRedis(t)
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	mr.Close()

	counter := NewRedisCounter(client, "down", logger)
	if err := counter.Tick(context.Background(), true); err == nil {
		t.Error("Tick() should fail when Redis is unavailable")
	}
	if err := counter.Throttle(context.Background(), 1); err == nil {
		t.Error("Throttle() should fail when Redis is unavailable")
	}
}
