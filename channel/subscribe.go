package channel

import (
	"fmt"

	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

// SubID identifies one subscription for later removal.
type SubID uint64

// HandlerFunc receives inbound envelopes on the dispatch goroutine.
// Handlers must not block; long work belongs on the caller's own
// goroutine.
type HandlerFunc func(env *message.Envelope)

// On subscribes handler to envelopes whose event tag equals event.
// Subscribe to message.Wildcard to observe every inbound envelope.
// Subscriptions survive reconnects.
func (c *Channel) On(event string, handler HandlerFunc) SubID {
	id := SubID(c.nextSub.Add(1))

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	handlers, ok := c.subs[event]
	if !ok {
		handlers = make(map[SubID]HandlerFunc)
		c.subs[event] = handlers
	}
	handlers[id] = handler
	return id
}

// Off removes a subscription. Removing an unknown id is a no-op, so
// teardown paths can call it unconditionally.
func (c *Channel) Off(event string, id SubID) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if handlers, ok := c.subs[event]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(c.subs, event)
		}
	}
}

// dispatch fans one envelope out to its event's subscribers and the
// wildcard subscribers. Handlers run sequentially; a panic in one is
// contained and logged without poisoning the dispatch loop.
func (c *Channel) dispatch(env *message.Envelope) {
	c.subsMu.RLock()
	handlers := make([]HandlerFunc, 0, 4)
	for _, h := range c.subs[env.Event] {
		handlers = append(handlers, h)
	}
	if env.Event != message.Wildcard {
		for _, h := range c.subs[message.Wildcard] {
			handlers = append(handlers, h)
		}
	}
	c.subsMu.RUnlock()

	for _, h := range handlers {
		c.safeInvoke(h, env)
	}
}

func (c *Channel) safeInvoke(h HandlerFunc, env *message.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked",
				"event", env.Event, "panic", fmt.Sprintf("%v", r))
		}
	}()
	h(env)
}
