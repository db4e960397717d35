// Package cache provides a generic, thread-safe key/value store combining
// per-entry TTL expiry, LRU eviction, and approximate-memory eviction, with
// built-in statistics (always enabled for observability) and optional
// Prometheus metrics via functional options.
//
// # Eviction
//
// An entry leaves the store in one of four ways: explicit Delete, pattern
// invalidation, TTL expiry (lazily on access or proactively by the background
// sweep), or capacity eviction on insert. When both the entry count and the
// approximate memory footprint are over budget, eviction is LRU-first: the
// least recently accessed entry is evicted repeatedly until both constraints
// are satisfied. The memory footprint is the size of the JSON-serialized
// value; this is a documented approximation, not a guaranteed bound.
//
// # Cache-aside
//
// GetOrSet implements the cache-aside pattern: on a miss the compute function
// runs and its result is cached; a compute error is returned and never cached.
//
// # Health
//
// Health derives a tri-level status (healthy/warning/critical) from the
// size-fill ratio, memory ratio, and rolling hit rate, each independently
// thresholded, with remediation hints attached.
//
// # Usage
//
//	store, err := cache.New[[]message.Light](ctx, cache.Config{
//		MaxEntries: 100,
//		MaxMemory:  5 << 20,
//		DefaultTTL: 5 * time.Minute,
//	})
//	...
//	lights, err := store.GetOrSet("lights:"+apiKey, fetchLights)
package cache
