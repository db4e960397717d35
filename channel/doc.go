// Package channel owns the single duplex websocket connection to the
// host application.
//
// The host launches the plugin with a localhost port and registration
// parameters. The channel dials that port, sends the one-time register
// frame, and from then on every remote operation flows through this one
// connection as a JSON envelope. Inbound frames are parsed, buffered in
// a ring, and dispatched to subscribers by event tag on a dedicated
// goroutine, so a slow handler never stalls the socket reader.
//
// The connection is expected to drop: the host restarts, the machine
// sleeps, the socket times out. The channel reconnects on a fixed delay
// and re-registers; subscriptions survive reconnects untouched. Sends
// attempted while disconnected fail fast with ErrNotConnected so the
// caller's timeout and recovery paths engage instead of blocking.
package channel
