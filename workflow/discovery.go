package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
)

// DiscoveryState is the discovery machine's state set.
type DiscoveryState int

const (
	// DiscoveryIdle means no fetch has happened yet.
	DiscoveryIdle DiscoveryState = iota
	// DiscoveryFetching means a light list request is in flight.
	DiscoveryFetching
	// DiscoverySuccess means the machine holds a light list.
	DiscoverySuccess
	// DiscoveryFailed means the last fetch failed.
	DiscoveryFailed
)

// String returns a human-readable state name.
func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryIdle:
		return "idle"
	case DiscoveryFetching:
		return "fetching"
	case DiscoverySuccess:
		return "success"
	case DiscoveryFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Discovery fetches and holds the list of controllable lights.
type Discovery struct {
	mu sync.Mutex
	base

	deps       Deps
	correlator *Correlator
	logger     *slog.Logger
	ctxID      string

	state  DiscoveryState
	apiKey string
	lights []message.Light
}

// NewDiscovery creates a discovery machine in the idle state.
func NewDiscovery(deps Deps) *Discovery {
	logger := deps.logger("discovery")
	return &Discovery{
		deps:       deps,
		correlator: NewCorrelator(deps.Bus, logger),
		logger:     logger,
		ctxID:      message.NewCorrelationID(),
		state:      DiscoveryIdle,
	}
}

// Fetch loads the light list for apiKey, serving from cache when a
// fresh entry exists.
func (m *Discovery) Fetch(ctx context.Context, apiKey string) error {
	m.mu.Lock()
	gen, err := m.begin("discovery", "Fetch")
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = DiscoveryFetching
	m.apiKey = apiKey
	m.mu.Unlock()

	if apiKey == "" {
		return m.settleFailure(gen,
			errors.WrapInvalid(errors.ErrMissingAPIKey, "discovery", "Fetch", "validate input"))
	}

	if m.deps.Cache != nil {
		if lights, ok := m.deps.Cache.Lights(apiKey); ok {
			m.logger.Debug("light list served from cache", "count", len(lights))
			return m.settleSuccess(gen, lights)
		}
	}

	var lights []message.Light
	op := func() error {
		fetched, err := m.fetch(ctx, apiKey)
		if err != nil {
			return err
		}
		lights = fetched
		return nil
	}
	if err := runWithRecovery(ctx, m.deps.Recovery, op); err != nil {
		return m.settleFailure(gen, err)
	}

	if m.deps.Cache != nil {
		if err := m.deps.Cache.SetLights(apiKey, lights); err != nil {
			m.logger.Warn("light list cache write failed", "error", err.Error())
		}
	}
	return m.settleSuccess(gen, lights)
}

// Refresh bypasses the cache and fetches a fresh list with the last
// credential.
func (m *Discovery) Refresh(ctx context.Context) error {
	m.mu.Lock()
	apiKey := m.apiKey
	m.mu.Unlock()

	if m.deps.Cache != nil && apiKey != "" {
		m.deps.Cache.InvalidateLights(apiKey)
	}
	return m.Fetch(ctx, apiKey)
}

// Retry repeats the failed fetch. Only valid from the error state.
func (m *Discovery) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.state != DiscoveryFailed {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidData, "discovery", "Retry",
			"retry outside error state")
	}
	apiKey := m.apiKey
	m.mu.Unlock()

	return m.Fetch(ctx, apiKey)
}

// fetch performs one correlated light list round trip.
func (m *Discovery) fetch(ctx context.Context, apiKey string) ([]message.Light, error) {
	req := message.GetLightsRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpGetLights,
			CorrelationID: message.NewCorrelationID(),
		},
		APIKey: apiKey,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return nil, err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpLightsReceived, m.deps.timeouts().Fetch)
	if err != nil {
		return nil, err
	}

	var payload message.LightsReceivedResponse
	if err := resp.DecodePayload(&payload); err != nil {
		return nil, err
	}
	return payload.Lights, nil
}

// LightState fetches the live state of one held light. It is a plain
// request, not a machine transition: reading a light's state does not
// disturb an in-flight fetch.
func (m *Discovery) LightState(ctx context.Context, deviceID, model string) (message.LightState, error) {
	req := message.GetLightStateRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpGetLightState,
			CorrelationID: message.NewCorrelationID(),
		},
		DeviceID: deviceID,
		Model:    model,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return message.LightState{}, err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpLightStateUpdate, m.deps.timeouts().Fetch)
	if err != nil {
		return message.LightState{}, err
	}

	var payload message.LightStateResponse
	if err := resp.DecodePayload(&payload); err != nil {
		return message.LightState{}, err
	}
	return payload.State, nil
}

// SetLightState applies state to one light and waits for the
// acknowledgement.
func (m *Discovery) SetLightState(ctx context.Context, deviceID, model string, state message.LightState) error {
	req := message.SetLightStateRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpSetLightState,
			CorrelationID: message.NewCorrelationID(),
		},
		DeviceID: deviceID,
		Model:    model,
		State:    state,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpLightStateChanged, m.deps.timeouts().Validate)
	if err != nil {
		return err
	}

	var payload message.LightStateResponse
	return resp.DecodePayload(&payload)
}

// Search filters the held light list by a case-insensitive substring
// match on name and model. An empty query returns the full list.
func (m *Discovery) Search(query string) []message.Light {
	m.mu.Lock()
	defer m.mu.Unlock()

	if query == "" {
		return append([]message.Light(nil), m.lights...)
	}

	needle := strings.ToLower(query)
	var matched []message.Light
	for _, l := range m.lights {
		if strings.Contains(strings.ToLower(l.Name), needle) ||
			strings.Contains(strings.ToLower(l.Model), needle) {
			matched = append(matched, l)
		}
	}
	return matched
}

// Lights returns a copy of the held light list.
func (m *Discovery) Lights() []message.Light {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.Light(nil), m.lights...)
}

// State returns the current machine state.
func (m *Discovery) State() DiscoveryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error recorded by the last failed fetch.
func (m *Discovery) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Reset discards any in-flight fetch and returns to idle.
func (m *Discovery) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidate()
	m.state = DiscoveryIdle
	m.err = nil
	m.lights = nil
}

func (m *Discovery) settleSuccess(gen uint64, lights []message.Light) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale light list discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "discovery", "Fetch", "apply result")
	}
	m.busy = false
	m.state = DiscoverySuccess
	m.lights = lights
	m.mu.Unlock()

	m.logger.Info("light list loaded", "count", len(lights))
	return nil
}

func (m *Discovery) settleFailure(gen uint64, cause error) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale fetch failure discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "discovery", "Fetch", "apply result")
	}
	m.busy = false
	m.err = cause
	m.state = DiscoveryFailed
	m.mu.Unlock()

	m.logger.Warn("light fetch failed", "error", cause.Error())
	failureToast(m.deps.Notifier, notify.CategoryDiscovery, "Discovery Failed", cause)
	return cause
}
