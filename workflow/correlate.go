package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/channel"
	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

// Correlator pairs one outbound request with its response on the shared
// unordered channel. Responses are matched by sub-tag, and by
// correlation id when the responder echoes one; a response without an
// id falls back to tag-only matching so older counterparts still work.
type Correlator struct {
	bus    Bus
	logger *slog.Logger
}

// NewCorrelator creates a correlator over bus.
func NewCorrelator(bus Bus, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{bus: bus, logger: logger}
}

// Request sends env and waits for the response tagged wantSubEvent.
// The subscription is removed on every exit path. A remote failure
// payload is surfaced as a RemoteError; exceeding timeout returns
// ErrTimeout classified transient.
func (c *Correlator) Request(
	ctx context.Context,
	env message.Envelope,
	wantSubEvent string,
	timeout time.Duration,
) (*message.Envelope, error) {
	corrID := env.CorrelationID()
	result := make(chan *message.Envelope, 1)

	var subID channel.SubID
	subID = c.bus.On(message.EventSendToPropertyInspector, func(in *message.Envelope) {
		switch in.SubEvent() {
		case wantSubEvent:
			if id := in.CorrelationID(); corrID != "" && id != "" && id != corrID {
				return
			}
		case message.OpError:
			// A generic failure frame counts only when it echoes our id;
			// unattributed errors may belong to another in-flight request.
			if corrID == "" || in.CorrelationID() != corrID {
				return
			}
		default:
			return
		}
		select {
		case result <- in:
		default:
		}
	})
	defer c.bus.Off(message.EventSendToPropertyInspector, subID)

	if err := c.bus.Send(env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-result:
		if remoteErr := resp.RemoteError(); remoteErr != nil {
			return nil, remoteErr
		}
		return resp, nil
	case <-timer.C:
		c.logger.Warn("request timed out",
			"subEvent", env.SubEvent(), "want", wantSubEvent, "timeout", timeout)
		return nil, errors.WrapTransient(errors.ErrTimeout,
			"workflow", "Request", "await "+wantSubEvent)
	case <-ctx.Done():
		return nil, errors.WrapTransient(ctx.Err(),
			"workflow", "Request", "await "+wantSubEvent)
	}
}
