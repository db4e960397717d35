package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"not connected", ErrNotConnected, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"timeout", ErrTimeout, ErrorTransient},
		{"context deadline", context.DeadlineExceeded, ErrorTransient},
		{"missing api key", ErrMissingAPIKey, ErrorInvalid},
		{"rejected api key", ErrInvalidAPIKey, ErrorInvalid},
		{"empty group name", ErrEmptyGroupName, ErrorInvalid},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"unknown defaults transient", stderrors.New("something odd"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRemoteErrorClassification(t *testing.T) {
	// Transient patterns in the remote message make the error recoverable
	transient := NewRemoteError("lightsReceived", "upstream network temporarily unavailable")
	assert.True(t, IsTransient(transient))
	assert.Equal(t, ErrorTransient, Classify(transient))

	// Anything else is terminal for the attempt
	terminal := NewRemoteError("apiKeyValidated", "key has been revoked")
	assert.False(t, IsTransient(terminal))
}

func TestRemoteErrorMessage(t *testing.T) {
	err := NewRemoteError("groupSaved", "duplicate name")
	assert.Equal(t, "remote error on groupSaved: duplicate name", err.Error())

	bare := &RemoteError{Message: "boom"}
	assert.Equal(t, "remote error: boom", bare.Error())
}

func TestWrapFormat(t *testing.T) {
	base := stderrors.New("socket closed")
	wrapped := Wrap(base, "channel", "Send", "write envelope")
	require.Error(t, wrapped)
	assert.Equal(t, "channel.Send: write envelope failed: socket closed", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))

	assert.NoError(t, Wrap(nil, "channel", "Send", "write envelope"))
}

func TestWrapPreservesClassification(t *testing.T) {
	wrapped := WrapTransient(ErrConnectionLost, "channel", "readLoop", "read message")
	assert.True(t, IsTransient(wrapped))
	assert.True(t, stderrors.Is(wrapped, ErrConnectionLost))

	var ce *ClassifiedError
	require.True(t, stderrors.As(wrapped, &ce))
	assert.Equal(t, "channel", ce.Component)
	assert.Equal(t, "readLoop", ce.Operation)
}

func TestInvalidBeatsTransientPattern(t *testing.T) {
	// A validation failure mentioning "timeout" must still bypass recovery.
	err := WrapInvalid(fmt.Errorf("timeout value out of range"), "config", "Validate", "check timeouts")
	assert.Equal(t, ErrorInvalid, Classify(err))
	assert.False(t, IsTransient(err))
}

func TestWrapInvalidAndFatal(t *testing.T) {
	invalid := WrapInvalid(ErrInvalidData, "message", "ParseEnvelope", "unmarshal")
	assert.True(t, IsInvalid(invalid))
	assert.False(t, IsFatal(invalid))

	fatal := WrapFatal(ErrMissingConfig, "cmd", "run", "load configuration")
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsInvalid(fatal))
}
