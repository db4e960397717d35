package message

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
)

// Wildcard is the subscription tag that receives every inbound envelope.
const Wildcard = "*"

// Host event tags with fixed meaning at the channel boundary.
const (
	EventSendToPlugin             = "sendToPlugin"
	EventSendToPropertyInspector  = "sendToPropertyInspector"
	EventDidReceiveSettings       = "didReceiveSettings"
	EventDidReceiveGlobalSettings = "didReceiveGlobalSettings"
)

// Envelope is the wire message shape in both directions. Immutable once sent.
type Envelope struct {
	Event   string          `json:"event"`
	Context string          `json:"context,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// payloadHeader is the correlation-relevant prefix every operation payload
// shares. Decoded separately so dispatch never needs the full typed payload.
type payloadHeader struct {
	Event         string `json:"event,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
}

// SubEvent returns payload.event, the application-level sub-tag used for
// response correlation. Empty when the payload has none.
func (e *Envelope) SubEvent() string {
	var h payloadHeader
	if len(e.Payload) == 0 || json.Unmarshal(e.Payload, &h) != nil {
		return ""
	}
	return h.Event
}

// CorrelationID returns payload.correlationId when the responder echoed one.
func (e *Envelope) CorrelationID() string {
	var h payloadHeader
	if len(e.Payload) == 0 || json.Unmarshal(e.Payload, &h) != nil {
		return ""
	}
	return h.CorrelationID
}

// RemoteError extracts an explicit failure carried in the payload. Failures
// arrive either as the expected response sub-tag with an error field, or as
// the OpError sub-tag with the reason in a message field. Returns nil when
// the payload carries neither.
func (e *Envelope) RemoteError() error {
	var h payloadHeader
	if len(e.Payload) == 0 || json.Unmarshal(e.Payload, &h) != nil {
		return nil
	}

	reason := h.Error
	if reason == "" && h.Event == OpError {
		reason = h.Message
		if reason == "" {
			reason = "remote operation failed"
		}
	}
	if reason == "" {
		return nil
	}

	tag := h.Event
	if tag == "" {
		tag = e.Event
	}
	return errors.NewRemoteError(tag, reason)
}

// DecodePayload unmarshals the payload into the given typed value.
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "message", "DecodePayload", "empty payload")
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.WrapInvalid(err, "message", "DecodePayload", "unmarshal payload")
	}
	return nil
}

// NewEnvelope builds an envelope around a typed payload. The payload is
// marshaled once here; a marshal failure is an invalid-input error.
func NewEnvelope(event, context string, payload any) (Envelope, error) {
	env := Envelope{Event: event, Context: context}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.WrapInvalid(err, "message", "NewEnvelope", "marshal payload")
	}
	env.Payload = raw
	return env, nil
}

// ParseEnvelope validates and decodes one inbound frame at the channel
// boundary. A frame without an event tag cannot be dispatched and is rejected.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(err, "message", "ParseEnvelope", "unmarshal frame")
	}
	if env.Event == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("missing event tag"),
			"message", "ParseEnvelope", "validate frame")
	}
	return &env, nil
}

// NewCorrelationID returns a fresh id embedded in request payloads and echoed
// by well-behaved responders.
func NewCorrelationID() string {
	return uuid.New().String()
}
