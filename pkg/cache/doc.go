// Package cache stores finished export results in Redis.
//
// A staged export of N orders takes roughly ceil(N/5) * 4s, so repeated
// requests for the same delivery date are answered from Redis until the entry
// expires or the shop reports an order change.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key, err := manager.Key(ctx, statusQuery, "Thu Dec 24 2020")
//	if err != nil {
//		// Redis unavailable - run uncached
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// run the pipeline, then
//		_ = manager.Set(ctx, key, data)
//	}
//
// # Invalidation
//
// Keys embed a generation number read from export:generation. Invalidate
// increments it, which makes every earlier entry unreachable; those entries
// are left to expire through their TTL.
//
// # Metrics
//
//   - export_cache_hits_total - Cache hits
//   - export_cache_misses_total - Cache misses
//   - export_cache_errors_total{operation} - Cache operation errors
//   - export_cache_invalidations_total - Generation bumps
package cache
