package workflow

import (
	"context"

	"github.com/felixgeelhaar/govee-light-management-sub000/channel"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

// Bus is the slice of the duplex channel the machines depend on.
// *channel.Channel satisfies it; tests substitute a fake.
type Bus interface {
	Send(env message.Envelope) error
	On(event string, handler channel.HandlerFunc) channel.SubID
	Off(event string, id channel.SubID)
	IsConnected() bool
}

var _ Bus = (*channel.Channel)(nil)

// Recoverer is the slice of the recovery engine the machines use.
type Recoverer interface {
	AttemptRecovery(ctx context.Context, err error) bool
}
