// Package buffer provides a generic, thread-safe ring buffer used to
// decouple message receipt from message dispatch.
//
// The channel layer reads frames off the wire on one goroutine and hands
// them to subscribers on another. The ring buffer in between absorbs
// bursts without blocking the reader; when it fills, the configured
// overflow policy decides whether the oldest or the newest item is
// dropped. Statistics are always collected, and Prometheus metrics can
// be layered on top via WithMetrics.
package buffer
