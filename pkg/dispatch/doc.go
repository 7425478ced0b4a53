// Package dispatch runs a batch of tasks across a bounded number of worker
// goroutines and reports every outcome to a single callback.
//
// Each worker owns a contiguous partition of the task list and its own QPS
// counter, so the configured total QPS ceiling is split evenly between
// workers and global throttling is approximate. Results travel through one
// buffered channel which the caller's goroutine polls at a fixed interval;
// the callback therefore never runs concurrently with itself.
//
// Example usage:
//
//	cfg := dispatch.DefaultConfig()
//	cfg.Concurrency = 4
//	cfg.QPSLimit = 20
//
//	report, err := dispatch.Dispatch(ctx, fetchOne, client, urls,
//		func(env dispatch.Envelope[string, []byte]) {
//			if !env.Success {
//				log.Warn().Str("url", env.Task).Msg(env.Trace)
//			}
//		}, cfg)
//
// The dispatcher:
//   - Runs synchronously in the caller's goroutine when Concurrency < 1
//   - Splits tasks into ceil(len/Concurrency) sized partitions otherwise
//   - Isolates failures per task (returned errors and panics become failed envelopes)
//   - Recovers and logs callback panics without stopping the dispatch
//   - Stops workers between tasks when ctx is cancelled
package dispatch
