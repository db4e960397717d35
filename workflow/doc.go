// Package workflow drives the plugin's multi-step operations through
// explicit state machines: connection establishment, device discovery,
// and group management.
//
// Each machine owns exactly one in-flight operation at a time. Entering
// a working state clears the prior error and marks the machine busy;
// settling clears busy again. A generation counter guards against stale
// responses: any response that arrives after the machine left the state
// that was awaiting it is discarded instead of being applied to a
// context that no longer exists.
//
// Network work goes through the Correlator, which pairs a fire-and-
// forget request envelope with the later, unordered response carrying
// the matching sub-tag and correlation id, under an explicit timeout.
// Transport failures are handed to the recovery engine; when recovery
// succeeds the original operation is retried exactly once.
package workflow
