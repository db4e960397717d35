package recovery

import (
	"context"
	stderrors "errors"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/retry"
)

// Strategy is one named recovery action. Matches decides whether the
// strategy applies to a given error; Recover attempts the repair.
type Strategy struct {
	Name    string
	Matches func(err error) bool
	Recover func(ctx context.Context) error
}

// Reconnector re-establishes the host connection. Implemented by the
// channel layer.
type Reconnector interface {
	Reconnect(ctx context.Context) error
	IsConnected() bool
}

// Flusher drops cached entries that may have gone stale. Implemented by
// the domain cache.
type Flusher interface {
	Flush()
}

// ReconnectStrategy repairs connection failures by re-establishing the
// channel. It refuses to report success while the channel is still
// down.
func ReconnectStrategy(rc Reconnector) Strategy {
	return Strategy{
		Name: "reconnect-channel",
		Matches: func(err error) bool {
			return stderrors.Is(err, errors.ErrNotConnected) ||
				stderrors.Is(err, errors.ErrConnectionLost)
		},
		Recover: func(ctx context.Context) error {
			if rc.IsConnected() {
				return nil
			}
			if err := rc.Reconnect(ctx); err != nil {
				return errors.Wrap(err, "recovery", "reconnect", "channel reconnect")
			}
			if !rc.IsConnected() {
				return errors.WrapTransient(errors.ErrNotConnected,
					"recovery", "reconnect", "channel still down after reconnect")
			}
			return nil
		},
	}
}

// ClearCacheStrategy handles transient remote failures by flushing the
// cache, so the next attempt fetches fresh data instead of replaying a
// possibly poisoned entry.
func ClearCacheStrategy(fl Flusher) Strategy {
	return Strategy{
		Name: "clear-cache",
		Matches: func(err error) bool {
			var remote *errors.RemoteError
			if stderrors.As(err, &remote) {
				return errors.IsTransient(err)
			}
			return stderrors.Is(err, errors.ErrStaleResponse)
		},
		Recover: func(ctx context.Context) error {
			fl.Flush()
			return nil
		},
	}
}

// WaitAndRetryStrategy handles timeouts by backing off and probing the
// link with a cheap operation. The probe is typically a no-payload send
// supplied by the channel layer.
func WaitAndRetryStrategy(cfg retry.Config, probe func(ctx context.Context) error) Strategy {
	return Strategy{
		Name: "wait-and-retry",
		Matches: func(err error) bool {
			return stderrors.Is(err, errors.ErrTimeout) ||
				stderrors.Is(err, context.DeadlineExceeded)
		},
		Recover: func(ctx context.Context) error {
			return retry.Do(ctx, cfg, func() error {
				return probe(ctx)
			})
		},
	}
}
