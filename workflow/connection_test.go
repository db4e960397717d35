package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
	"github.com/felixgeelhaar/govee-light-management-sub000/testutil"
)

func validatingBus() *testutil.FakeBus {
	bus := testutil.NewFakeBus()
	bus.SetResponder(func(env message.Envelope) {
		bus.Respond(env, message.OpAPIKeyValidated, map[string]any{"isValid": true})
	})
	return bus
}

func TestConnectionConnectSuccess(t *testing.T) {
	bus := validatingBus()
	deps := newTestDeps(t, bus)
	conn := NewConnection(deps)

	require.NoError(t, conn.Connect(context.Background(), "key-1"))

	assert.Equal(t, ConnectionConnected, conn.State())
	assert.Equal(t, 1, bus.SentCount())
	assert.True(t, deps.Cache.APIKeyValid("key-1"))
}

func TestConnectionCachedCredentialSkipsRequest(t *testing.T) {
	bus := testutil.NewFakeBus()
	deps := newTestDeps(t, bus)
	require.NoError(t, deps.Cache.SetAPIKeyValid("key-1"))
	conn := NewConnection(deps)

	require.NoError(t, conn.Connect(context.Background(), "key-1"))

	assert.Equal(t, ConnectionConnected, conn.State())
	assert.Zero(t, bus.SentCount(), "cached credential must produce no request")
}

func TestConnectionErrorFrameResponse(t *testing.T) {
	bus := testutil.NewFakeBus()
	bus.SetResponder(func(env message.Envelope) {
		bus.Respond(env, message.OpError, map[string]any{"message": "boom"})
	})
	deps := newTestDeps(t, bus)
	conn := NewConnection(deps)

	err := conn.Connect(context.Background(), "key-1")
	require.Error(t, err)

	var remote *errors.RemoteError
	require.ErrorAs(t, err, &remote, "a generic error frame must surface as the remote failure, not a timeout")
	assert.Equal(t, "boom", remote.Message)
	assert.NotErrorIs(t, err, errors.ErrTimeout)
	assert.Equal(t, ConnectionFailed, conn.State())
	assert.False(t, deps.Cache.APIKeyValid("key-1"))
}

func TestConnectionRejectedCredential(t *testing.T) {
	bus := testutil.NewFakeBus()
	bus.SetResponder(func(env message.Envelope) {
		bus.Respond(env, message.OpAPIKeyValidated, map[string]any{"isValid": false})
	})
	recoverer := &fakeRecoverer{result: true}
	notifier := &fakeNotifier{}
	deps := newTestDeps(t, bus)
	deps.Recovery = recoverer
	deps.Notifier = notifier
	conn := NewConnection(deps)

	err := conn.Connect(context.Background(), "bad-key")
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrInvalidAPIKey)
	assert.Equal(t, ConnectionFailed, conn.State())
	assert.False(t, deps.Cache.APIKeyValid("bad-key"), "rejections are never cached")
	assert.Zero(t, recoverer.attempts(), "invalid errors bypass recovery")
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, notify.CategoryConnection, notifier.last().Category)
}

func TestConnectionMissingCredential(t *testing.T) {
	bus := testutil.NewFakeBus()
	notifier := &fakeNotifier{}
	deps := newTestDeps(t, bus)
	deps.Notifier = notifier
	conn := NewConnection(deps)

	err := conn.Connect(context.Background(), "")
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrMissingAPIKey)
	assert.Equal(t, ConnectionFailed, conn.State())
	assert.Zero(t, bus.SentCount())
	assert.Equal(t, 1, notifier.count())
}

func TestConnectionSendFailureNoAutoRetry(t *testing.T) {
	bus := testutil.NewFakeBus()
	bus.SetConnected(false)
	bus.SetSendErr(errors.WrapTransient(errors.ErrNotConnected, "channel", "Send", "write"))
	recoverer := &fakeRecoverer{result: false}
	notifier := &fakeNotifier{}
	deps := newTestDeps(t, bus)
	deps.Recovery = recoverer
	deps.Notifier = notifier
	conn := NewConnection(deps)

	err := conn.Connect(context.Background(), "key-1")
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.Equal(t, ConnectionFailed, conn.State())
	assert.Equal(t, 1, recoverer.attempts())
	assert.Equal(t, 1, bus.SentCount(), "failed recovery must not retry the request")
	assert.Equal(t, 1, notifier.count(), "one toast per terminal failure")
}

func TestConnectionRecoveryRetriesExactlyOnce(t *testing.T) {
	bus := testutil.NewFakeBus()
	bus.SetSendErr(errors.WrapTransient(errors.ErrConnectionLost, "channel", "Send", "write"))
	bus.SetResponder(func(env message.Envelope) {
		bus.Respond(env, message.OpAPIKeyValidated, map[string]any{"isValid": true})
	})
	recoverer := &fakeRecoverer{result: true}
	recoverer.beforeR = func() { bus.SetSendErr(nil) }
	deps := newTestDeps(t, bus)
	deps.Recovery = recoverer
	conn := NewConnection(deps)

	require.NoError(t, conn.Connect(context.Background(), "key-1"))

	assert.Equal(t, ConnectionConnected, conn.State())
	assert.Equal(t, 1, recoverer.attempts())
	assert.Equal(t, 2, bus.SentCount(), "original, then exactly one retry")
}

func TestConnectionRetry(t *testing.T) {
	bus := testutil.NewFakeBus()
	bus.SetSendErr(errors.WrapTransient(errors.ErrNotConnected, "channel", "Send", "write"))
	deps := newTestDeps(t, bus)
	conn := NewConnection(deps)

	require.Error(t, conn.Connect(context.Background(), "key-1"))
	require.Equal(t, ConnectionFailed, conn.State())

	bus.SetSendErr(nil)
	bus.SetResponder(func(env message.Envelope) {
		bus.Respond(env, message.OpAPIKeyValidated, map[string]any{"isValid": true})
	})

	require.NoError(t, conn.Retry(context.Background()))
	assert.Equal(t, ConnectionConnected, conn.State())
	assert.Equal(t, "key-1", conn.APIKey(), "retry reuses the failed credential")

	err := conn.Retry(context.Background())
	require.Error(t, err, "retry is only valid from the error state")
	assert.True(t, errors.IsInvalid(err))
}

func TestConnectionBusyGuard(t *testing.T) {
	bus := testutil.NewFakeBus()
	deps := newTestDeps(t, bus)
	conn := NewConnection(deps)

	done := make(chan error, 1)
	go func() { done <- conn.Connect(context.Background(), "key-1") }()

	require.Eventually(t, func() bool { return bus.SentCount() == 1 },
		testWait, testPoll)

	err := conn.Connect(context.Background(), "key-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)

	// No responder is installed; the first attempt times out.
	first := <-done
	require.Error(t, first)
	assert.ErrorIs(t, first, errors.ErrTimeout)
}

func TestConnectionDisconnectDiscardsInFlight(t *testing.T) {
	bus := testutil.NewFakeBus()
	notifier := &fakeNotifier{}
	deps := newTestDeps(t, bus)
	deps.Notifier = notifier
	conn := NewConnection(deps)

	done := make(chan error, 1)
	go func() { done <- conn.Connect(context.Background(), "key-1") }()

	require.Eventually(t, func() bool { return bus.SentCount() == 1 },
		testWait, testPoll)

	conn.Disconnect()
	require.Equal(t, ConnectionDisconnected, conn.State())

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStaleResponse)
	assert.Equal(t, ConnectionDisconnected, conn.State(), "stale result must not change state")
	assert.Zero(t, notifier.count(), "discarded results produce no toast")
}
