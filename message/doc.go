// Package message defines the wire envelope exchanged over the duplex channel
// and the closed set of typed request/response payloads the plugin speaks.
//
// Every message in either direction is an Envelope:
//
//	{ "event": string, "context": string, "payload": object }
//
// Event is the routing tag the channel dispatches on. Context identifies the
// addressed workflow instance (the host's opaque instance id). Payload carries
// the operation data; when payload.event is present it is the application-level
// sub-tag used for response correlation, and payload.correlationId, when
// echoed by the responder, is matched before the sub-tag alone.
//
// Envelopes are immutable once sent. Inbound envelopes are validated at the
// channel boundary by ParseEnvelope and then only read, never mutated.
package message
