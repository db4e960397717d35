package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
)

// ConnectionState is the connection machine's state set.
type ConnectionState int

const (
	// ConnectionDisconnected is the initial and give-up state.
	ConnectionDisconnected ConnectionState = iota
	// ConnectionConnecting means credential validation is in flight.
	ConnectionConnecting
	// ConnectionConnected means the credential validated successfully.
	ConnectionConnected
	// ConnectionFailed means the last validation attempt failed.
	ConnectionFailed
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Connection validates a credential against the control process and
// tracks whether the plugin considers itself connected.
type Connection struct {
	mu sync.Mutex
	base

	deps       Deps
	correlator *Correlator
	logger     *slog.Logger
	ctxID      string

	state  ConnectionState
	apiKey string
}

// NewConnection creates a connection machine in the disconnected state.
func NewConnection(deps Deps) *Connection {
	logger := deps.logger("connection")
	return &Connection{
		deps:       deps,
		correlator: NewCorrelator(deps.Bus, logger),
		logger:     logger,
		ctxID:      message.NewCorrelationID(),
		state:      ConnectionDisconnected,
	}
}

// Connect validates apiKey and transitions to connected on success.
// The cache is consulted first; a previously validated key produces no
// network traffic.
func (m *Connection) Connect(ctx context.Context, apiKey string) error {
	m.mu.Lock()
	gen, err := m.begin("connection", "Connect")
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = ConnectionConnecting
	m.apiKey = apiKey
	m.mu.Unlock()

	if apiKey == "" {
		// Validation failure: reported directly, never routed through
		// recovery.
		return m.settleFailure(gen,
			errors.WrapInvalid(errors.ErrMissingAPIKey, "connection", "Connect", "validate input"))
	}

	if m.deps.Cache != nil && m.deps.Cache.APIKeyValid(apiKey) {
		m.logger.Debug("credential served from cache")
		return m.settleSuccess(gen)
	}

	op := func() error { return m.validate(ctx, apiKey) }
	if err := runWithRecovery(ctx, m.deps.Recovery, op); err != nil {
		return m.settleFailure(gen, err)
	}

	if m.deps.Cache != nil {
		// Only successful validations are cached; failures may be
		// transient.
		if err := m.deps.Cache.SetAPIKeyValid(apiKey); err != nil {
			m.logger.Warn("credential cache write failed", "error", err.Error())
		}
	}
	return m.settleSuccess(gen)
}

// validate performs one correlated validation round trip.
func (m *Connection) validate(ctx context.Context, apiKey string) error {
	req := message.ValidateAPIKeyRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpValidateAPIKey,
			CorrelationID: message.NewCorrelationID(),
		},
		APIKey: apiKey,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpAPIKeyValidated, m.deps.timeouts().Validate)
	if err != nil {
		return err
	}

	var payload message.APIKeyValidatedResponse
	if err := resp.DecodePayload(&payload); err != nil {
		return err
	}
	if !payload.IsValid {
		return errors.WrapInvalid(errors.ErrInvalidAPIKey, "connection", "validate", "credential rejected")
	}
	return nil
}

// Retry re-enters connecting with the credential that failed. Only
// valid from the error state.
func (m *Connection) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.state != ConnectionFailed {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidData, "connection", "Retry",
			"retry outside error state")
	}
	apiKey := m.apiKey
	m.mu.Unlock()

	return m.Connect(ctx, apiKey)
}

// Disconnect gives up and returns to the initial state. A response
// still in flight is discarded when it lands.
func (m *Connection) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidate()
	m.state = ConnectionDisconnected
	m.err = nil
	m.apiKey = ""
}

// State returns the current machine state.
func (m *Connection) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error recorded by the last failed attempt.
func (m *Connection) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// APIKey returns the credential of the current or last attempt.
func (m *Connection) APIKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiKey
}

func (m *Connection) settleSuccess(gen uint64) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale validation result discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "connection", "Connect", "apply result")
	}
	m.busy = false
	m.state = ConnectionConnected
	m.mu.Unlock()

	m.logger.Info("connected")
	return nil
}

func (m *Connection) settleFailure(gen uint64, cause error) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale validation failure discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "connection", "Connect", "apply result")
	}
	m.busy = false
	m.err = cause
	m.state = ConnectionFailed
	m.mu.Unlock()

	m.logger.Warn("connection attempt failed", "error", cause.Error())
	failureToast(m.deps.Notifier, notify.CategoryConnection, "Connection Failed", cause)
	return cause
}
