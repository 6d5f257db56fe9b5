// Package batch groups order ids into aliased multi-order queries and fetches
// them with a staged, rate-paced dispatcher.
//
// The remote API charges per query cost and rejects tight bursts, so one
// round trip fetches up to DefaultSize orders, and batch i is dispatched no
// earlier than i*Interval after the run starts. Dispatch of a batch never waits
// for an earlier batch to complete.
//
// Example usage:
//
//	batches := batch.Build(listing.IDs, batch.DefaultSize)
//	sched := batch.NewScheduler(shopClient, batch.DefaultConfig())
//	results := sched.Run(ctx, batches)
//	for _, r := range results {
//		if r.Err != nil {
//			// whole batch skipped
//		}
//	}
//
// The scheduler:
//   - Paces dispatch with a token bucket of capacity 1 refilled every Interval
//   - Runs every dispatched batch concurrently and joins them all
//   - Applies a per-batch timeout
//   - Records failures per batch instead of failing the run
//   - Stops dispatching when the run context is cancelled
package batch
