package recovery

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/retry"
)

type fakeReconnector struct {
	connected    bool
	reconnects   int
	reconnectErr error
}

func (f *fakeReconnector) Reconnect(_ context.Context) error {
	f.reconnects++
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	f.connected = true
	return nil
}

func (f *fakeReconnector) IsConnected() bool {
	return f.connected
}

type fakeFlusher struct {
	flushes int
}

func (f *fakeFlusher) Flush() {
	f.flushes++
}

func connectionLost() error {
	return errors.WrapTransient(errors.ErrConnectionLost, "channel", "Send", "write frame")
}

func newTestEngine(t *testing.T, strategies []Strategy) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), strategies)
	require.NoError(t, err)
	return e
}

func TestAttemptRecoveryReconnects(t *testing.T) {
	rc := &fakeReconnector{}
	e := newTestEngine(t, []Strategy{ReconnectStrategy(rc)})

	ok := e.AttemptRecovery(context.Background(), connectionLost())

	assert.True(t, ok)
	assert.Equal(t, 1, rc.reconnects)
	assert.True(t, rc.connected)

	stats := e.RecoveryStats()
	assert.Equal(t, int64(1), stats.TotalAttempts)
	assert.Equal(t, int64(1), stats.Successes)
	assert.Equal(t, int64(1), stats.StrategyUsage["reconnect-channel"])
}

func TestAttemptRecoverySkipsInvalidErrors(t *testing.T) {
	rc := &fakeReconnector{}
	e := newTestEngine(t, []Strategy{ReconnectStrategy(rc)})

	err := errors.WrapInvalid(errors.ErrInvalidAPIKey, "workflow", "validate", "rejected")
	ok := e.AttemptRecovery(context.Background(), err)

	assert.False(t, ok)
	assert.Equal(t, 0, rc.reconnects)
	assert.Equal(t, int64(0), e.RecoveryStats().TotalAttempts)
}

func TestAttemptRecoveryNoMatchingStrategy(t *testing.T) {
	fl := &fakeFlusher{}
	e := newTestEngine(t, []Strategy{ClearCacheStrategy(fl)})

	// A connection error does not match the cache strategy.
	ok := e.AttemptRecovery(context.Background(), connectionLost())

	assert.False(t, ok)
	assert.Equal(t, 0, fl.flushes)
}

func TestRecoverReportsExhaustion(t *testing.T) {
	rc := &fakeReconnector{reconnectErr: stderrors.New("dial refused")}
	e := newTestEngine(t, []Strategy{ReconnectStrategy(rc)})

	err := e.Recover(context.Background(), connectionLost())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRecoveryExhausted)
	assert.Equal(t, 1, rc.reconnects)

	// A non-transient cause comes back unchanged, never as exhaustion.
	invalid := errors.WrapInvalid(errors.ErrInvalidAPIKey, "workflow", "validate", "rejected")
	err = e.Recover(context.Background(), invalid)
	assert.Same(t, invalid, err)
	assert.NotErrorIs(t, err, errors.ErrRecoveryExhausted)

	rc.reconnectErr = nil
	assert.NoError(t, e.Recover(context.Background(), connectionLost()))
}

func TestAttemptRecoveryFallsThroughToNextStrategy(t *testing.T) {
	rc := &fakeReconnector{reconnectErr: stderrors.New("dial refused")}
	calls := 0
	fallback := Strategy{
		Name:    "fallback",
		Matches: func(error) bool { return true },
		Recover: func(context.Context) error {
			calls++
			return nil
		},
	}
	e := newTestEngine(t, []Strategy{ReconnectStrategy(rc), fallback})

	ok := e.AttemptRecovery(context.Background(), connectionLost())

	assert.True(t, ok)
	assert.Equal(t, 1, rc.reconnects)
	assert.Equal(t, 1, calls)

	history := e.History()
	require.Len(t, history, 2)
	assert.Equal(t, "reconnect-channel", history[0].Strategy)
	assert.False(t, history[0].Success)
	assert.Equal(t, "fallback", history[1].Strategy)
	assert.True(t, history[1].Success)
}

func TestAttemptRecoveryBreakerBlocksFailingStrategy(t *testing.T) {
	rc := &fakeReconnector{reconnectErr: stderrors.New("dial refused")}
	e := newTestEngine(t, []Strategy{ReconnectStrategy(rc)})

	for i := 0; i < 5; i++ {
		assert.False(t, e.AttemptRecovery(context.Background(), connectionLost()))
	}
	require.Equal(t, 5, rc.reconnects)

	// Breaker is now open; the strategy is not executed again.
	assert.False(t, e.AttemptRecovery(context.Background(), connectionLost()))
	assert.Equal(t, 5, rc.reconnects)
	assert.Equal(t, BreakerOpen, e.RecoveryStats().Breakers["reconnect-channel"].State)
}

func TestClearCacheStrategyMatchesTransientRemoteErrors(t *testing.T) {
	fl := &fakeFlusher{}
	s := ClearCacheStrategy(fl)

	transient := errors.NewRemoteError("lightsReceived", "service temporarily unavailable")
	terminal := errors.NewRemoteError("lightsReceived", "unknown device id")

	assert.True(t, s.Matches(transient))
	assert.False(t, s.Matches(terminal))
	assert.True(t, s.Matches(errors.ErrStaleResponse))

	require.NoError(t, s.Recover(context.Background()))
	assert.Equal(t, 1, fl.flushes)
}

func TestWaitAndRetryStrategyProbes(t *testing.T) {
	probes := 0
	s := WaitAndRetryStrategy(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}, func(context.Context) error {
		probes++
		if probes < 2 {
			return stderrors.New("still quiet")
		}
		return nil
	})

	assert.True(t, s.Matches(errors.ErrTimeout))
	assert.True(t, s.Matches(context.DeadlineExceeded))
	assert.False(t, s.Matches(errors.ErrConnectionLost))

	require.NoError(t, s.Recover(context.Background()))
	assert.Equal(t, 2, probes)
}

func TestStrategyPanicCountsAsFailure(t *testing.T) {
	panicky := Strategy{
		Name:    "panicky",
		Matches: func(error) bool { return true },
		Recover: func(context.Context) error { panic("boom") },
	}
	e := newTestEngine(t, []Strategy{panicky})

	ok := e.AttemptRecovery(context.Background(), connectionLost())

	assert.False(t, ok)
	history := e.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "write frame")
}

func TestHistoryRollsOver(t *testing.T) {
	noop := Strategy{
		Name:    "noop",
		Matches: func(error) bool { return true },
		Recover: func(context.Context) error { return nil },
	}
	e, err := New(Config{HistoryLimit: 3}, []Strategy{noop})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		e.AttemptRecovery(context.Background(), connectionLost())
	}

	history := e.History()
	assert.Len(t, history, 3)
	assert.Equal(t, int64(5), e.RecoveryStats().TotalAttempts)
}

func TestDirectBreakerSurface(t *testing.T) {
	e := newTestEngine(t, nil)

	for i := 0; i < 5; i++ {
		assert.True(t, e.ShouldAttemptOperation("setLightState"))
		e.RecordFailure("setLightState")
	}
	assert.False(t, e.ShouldAttemptOperation("setLightState"))

	e.RecordSuccess("setLightState")
	assert.True(t, e.ShouldAttemptOperation("setLightState"))
}

func TestEngineHealth(t *testing.T) {
	e := newTestEngine(t, nil)

	assert.True(t, e.Health("recovery").IsHealthy())

	for i := 0; i < 5; i++ {
		e.RecordFailure("only-key")
	}
	assert.True(t, e.Health("recovery").IsCritical())

	// A healthy second key downgrades the status to a warning.
	e.RecordSuccess("other-key")
	assert.True(t, e.Health("recovery").IsWarning())
}
