// Package recovery implements the failure-recovery engine that sits
// between the workflow machines and the host channel.
//
// The engine holds an ordered table of named strategies. Each strategy
// carries a predicate deciding which errors it applies to and an action
// that tries to repair the underlying fault, such as reconnecting the
// channel or flushing suspect cache entries. Every strategy is guarded
// by its own circuit breaker so that a repeatedly failing repair stops
// being attempted for a cooldown window.
//
// Errors classified as invalid never reach the strategy table: they
// describe caller mistakes, and no amount of reconnecting fixes a bad
// API key. The breaker table is also exposed directly through
// ShouldAttemptOperation, RecordSuccess and RecordFailure for callers
// that want breaker protection around a specific operation without a
// named strategy.
package recovery
