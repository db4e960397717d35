package testutil

import (
	"sync"

	"github.com/felixgeelhaar/govee-light-management-sub000/channel"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

// FakeBus is an in-memory duplex channel with the same surface the
// workflow machines consume. A responder, when set, runs on its own
// goroutine after each successful Send and typically pushes a reply,
// which makes request/response tests read linearly.
type FakeBus struct {
	mu        sync.Mutex
	subs      map[string]map[channel.SubID]channel.HandlerFunc
	nextID    uint64
	connected bool
	sendErr   error
	sent      []message.Envelope
	responder func(env message.Envelope)
}

// NewFakeBus returns a connected bus with no subscriptions.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		subs:      make(map[string]map[channel.SubID]channel.HandlerFunc),
		connected: true,
	}
}

// Send records env and either fails with the scripted error or hands
// env to the responder.
func (b *FakeBus) Send(env message.Envelope) error {
	b.mu.Lock()
	b.sent = append(b.sent, env)
	err := b.sendErr
	responder := b.responder
	b.mu.Unlock()

	if err != nil {
		return err
	}
	if responder != nil {
		go responder(env)
	}
	return nil
}

// On registers handler for event and returns its subscription id.
func (b *FakeBus) On(event string, handler channel.HandlerFunc) channel.SubID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := channel.SubID(b.nextID)
	if b.subs[event] == nil {
		b.subs[event] = make(map[channel.SubID]channel.HandlerFunc)
	}
	b.subs[event][id] = handler
	return id
}

// Off removes a subscription. Unknown ids are ignored.
func (b *FakeBus) Off(event string, id channel.SubID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[event], id)
}

// IsConnected reports the scripted connection state.
func (b *FakeBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SetConnected scripts the connection state.
func (b *FakeBus) SetConnected(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = connected
}

// SetSendErr makes every subsequent Send fail with err. Pass nil to
// restore delivery.
func (b *FakeBus) SetSendErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

// SetResponder installs the auto-reply hook.
func (b *FakeBus) SetResponder(fn func(env message.Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responder = fn
}

// Push delivers env to every subscriber of its event tag, plus wildcard
// subscribers, on the caller's goroutine.
func (b *FakeBus) Push(env message.Envelope) {
	b.mu.Lock()
	var handlers []channel.HandlerFunc
	for _, h := range b.subs[env.Event] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subs[message.Wildcard] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(&env)
	}
}

// Respond builds a well-formed reply to req and pushes it: fields are
// merged over the sub-tag and the echoed correlation id. Safe to call
// from a responder goroutine.
func (b *FakeBus) Respond(req message.Envelope, subEvent string, fields map[string]any) {
	payload := map[string]any{
		"event":         subEvent,
		"correlationId": req.CorrelationID(),
	}
	for k, v := range fields {
		payload[k] = v
	}
	env, err := message.NewEnvelope(message.EventSendToPropertyInspector, req.Context, payload)
	if err != nil {
		panic(err)
	}
	b.Push(env)
}

// SentCount returns how many envelopes Send has seen, including ones
// that failed with the scripted error.
func (b *FakeBus) SentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

// SentAt returns the i-th envelope handed to Send.
func (b *FakeBus) SentAt(i int) message.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[i]
}
