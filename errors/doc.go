// Package errors provides standardized error handling for the plugin core.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, recoverable), Invalid (bad input, never recovered), and Fatal
// (unrecoverable, stop processing). Classification drives the recovery engine:
// invalid errors are reported straight back to the initiating workflow, while
// transient errors are routed through recovery strategies before being
// surfaced.
//
// # Error Taxonomy
//
// The plugin's failure modes map onto standard variables and classes:
//
//   - connection failures: ErrNotConnected, ErrConnectionLost (transient)
//   - deadline failures: ErrTimeout, context.DeadlineExceeded (transient)
//   - caller input rejected before any network call: Invalid class
//   - explicit failure payload from the other side: RemoteError, transient
//     only when its message matches a known transient pattern
//   - all matching recovery strategies failed or breaker-blocked:
//     ErrRecoveryExhausted
//
// # Wrapping
//
// All wrapping follows the "component.method: action failed: %w" format:
//
//	errors.WrapTransient(err, "channel", "Send", "write envelope")
//	errors.WrapInvalid(err, "workflow", "Connect", "empty api key")
//
// Classification survives wrapping chains and works with errors.Is/As.
package errors
