// Package component defines the lifecycle contract shared by the
// long-lived parts of the plugin (channel, cache, recovery engine,
// workflow machines, notification manager) and the dependency bundle
// they are constructed with.
//
// Lifecycle follows one pattern:
//
//	Initialize() error                  // allocate, validate, no I/O loops
//	Start(ctx context.Context) error    // spin up goroutines bound to ctx
//	Stop(timeout time.Duration) error   // graceful shutdown within timeout
//
// Components never store the context; it arrives as a parameter and the
// owner keeps the cancel function.
package component
