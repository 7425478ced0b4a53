package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/unitools/pkg/dbconn"
	"github.com/Sternrassler/unitools/pkg/dispatch"
	"github.com/Sternrassler/unitools/pkg/store"
)

// recorder persists fetch outcomes. Both sinks are optional and failures
// are logged, never fatal.
type recorder struct {
	store     *store.Manager
	db        *dbconn.Conn
	namespace string
	table     string
	logger    zerolog.Logger
}

func (r *recorder) record(ctx context.Context, env dispatch.Envelope[string, []byte]) {
	if r.store != nil {
		if err := r.store.Record(ctx, r.namespace, env.Task, env.Success, env.Value, env.Trace); err != nil {
			r.logger.Warn().Err(err).Str("url", env.Task).Msg("Failed to store result")
		}
	}

	if r.db != nil {
		_, err := r.db.InsertInto(ctx, r.table, resultRow(env, time.Now().UTC()), []string{"url"})
		if err != nil {
			r.logger.Warn().Err(err).Str("url", env.Task).Msg("Failed to insert result")
		}
	}
}

func resultRow(env dispatch.Envelope[string, []byte], fetchedAt time.Time) map[string]any {
	return map[string]any{
		"url":        env.Task,
		"success":    env.Success,
		"body_bytes": int64(len(env.Value)),
		"trace":      env.Trace,
		"fetched_at": fetchedAt,
	}
}
