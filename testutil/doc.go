// Package testutil provides in-memory stand-ins for the host channel so
// workflow and integration tests run without a websocket.
package testutil
