// Package goveelights is the resilience core of a companion-device plugin for
// Govee light management. The plugin's two halves, a background control process
// and a configuration UI, cannot call each other directly: they exchange JSON
// envelopes over one long-lived duplex WebSocket connection supplied by the
// host application. Everything in this module exists to make that single
// unordered channel safe to build workflows on.
//
// # Architecture
//
// Leaf-first, the module is organized as:
//
//   - channel: owns the one WebSocket connection; lifecycle, registration
//     handshake, event-tag dispatch with wildcard fan-out, fixed-delay
//     reconnect, and a last-known-settings snapshot.
//   - pkg/cache: generic TTL+LRU store with approximate-memory eviction,
//     glob invalidation, a cache-aside helper, and tri-level health.
//   - recovery: named recovery strategies, each guarded by an error predicate
//     and its own circuit breaker (closed/open/half-open).
//   - workflow: finite state machines for connection establishment, light
//     discovery, and group management; each issues correlated requests over
//     the channel, consults the cache first, and defers to recovery on
//     failure.
//   - notify: a bounded, priority- and category-aware queue that turns
//     workflow outcomes into deduplicated user-visible messages.
//
// Supporting packages follow the same conventions throughout: errors provides
// classified error wrapping (transient/invalid/fatal), health provides the
// shared status type, metric wraps a private Prometheus registry, component
// defines the lifecycle contract and dependency injection container, and
// config carries the constructor-time constants.
//
// # Concurrency model
//
// Operations multiplex over the one channel as independent in-flight requests
// distinguished by response event tag plus an explicit correlation id. Within
// one workflow machine operations are strictly sequential; across machines
// they interleave arbitrarily. Shared state (cache, breaker table) is guarded
// by plain mutexes; there is no cross-component locking order because no
// component calls back into another while holding its lock.
package goveelights
