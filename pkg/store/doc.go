// Package store records task outcomes in Redis so that an interrupted batch
// can be resumed without repeating finished work.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := store.NewManager(redisClient, 24*time.Hour)
//
//	// Skip tasks that already succeeded
//	done, err := manager.Completed(ctx, "nightly-crawl", url)
//
//	// Record an outcome from a dispatch callback
//	err = manager.Record(ctx, "nightly-crawl", url, env.Success, env.Value, env.Trace)
//
// # Keys
//
// Keys are "unitools:<namespace>:<sha1(task)>" so arbitrary task strings
// (URLs, JSON) map to bounded, Redis-safe keys.
//
// # Metrics
//
//   - unitools_store_operations_total{operation, result} - Store operations
package store
