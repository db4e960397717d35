package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/govee-light-management-sub000/component"
	"github.com/felixgeelhaar/govee-light-management-sub000/config"
	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/health"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/buffer"
)

const dispatchPollInterval = 10 * time.Millisecond

// Channel is the duplex connection to the host. All methods are safe
// for concurrent use.
type Channel struct {
	name   string
	reg    config.Registration
	cfg    config.ChannelConfig
	logger *slog.Logger

	url    string
	dialer *websocket.Dialer

	conn      *websocket.Conn
	connMu    sync.Mutex
	writeMu   sync.Mutex
	connected atomic.Bool

	inbound *buffer.Ring[*message.Envelope]

	subs    map[string]map[SubID]HandlerFunc
	subsMu  sync.RWMutex
	nextSub atomic.Uint64

	settingsMu     sync.RWMutex
	settings       json.RawMessage
	globalSettings json.RawMessage

	reconnectNow chan struct{}
	connNotify   chan struct{} // closed and replaced on every successful connect

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	initialized  atomic.Bool
	startTime    time.Time
	wg           sync.WaitGroup
	lifecycleMu  sync.Mutex

	messagesReceived atomic.Int64
	messagesSent     atomic.Int64
	reconnects       atomic.Int64
	parseErrors      atomic.Int64
	dispatchDrops    atomic.Int64
	lastActivity     atomic.Value // time.Time

	metrics *channelMetrics
}

var _ component.LifecycleComponent = (*Channel)(nil)

// New creates a channel for the registration the host supplied.
func New(reg config.Registration, cfg config.ChannelConfig, deps component.Dependencies) (*Channel, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	c := &Channel{
		name:   "channel",
		reg:    reg,
		cfg:    cfg,
		logger: deps.GetLoggerWithComponent("channel"),
		url:    fmt.Sprintf("ws://127.0.0.1:%d", reg.Port),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		subs:         make(map[string]map[SubID]HandlerFunc),
		reconnectNow: make(chan struct{}, 1),
		connNotify:   make(chan struct{}),
		shutdown:     make(chan struct{}),
	}

	bufOpts := []buffer.Option[*message.Envelope]{
		buffer.WithDropCallback[*message.Envelope](func(*message.Envelope) {
			c.dispatchDrops.Add(1)
			c.logger.Warn("inbound envelope dropped, dispatch buffer full")
		}),
	}
	if deps.MetricsRegistry != nil {
		var err error
		c.metrics, err = newChannelMetrics(deps.MetricsRegistry)
		if err != nil {
			return nil, err
		}
		bufOpts = append(bufOpts,
			buffer.WithMetrics[*message.Envelope](deps.MetricsRegistry, "channel"))
	}

	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}
	ring, err := buffer.NewRing[*message.Envelope](size, bufOpts...)
	if err != nil {
		return nil, err
	}
	c.inbound = ring

	return c, nil
}

// Name implements component.Component.
func (c *Channel) Name() string {
	return c.name
}

// Initialize wires the internal settings mirror. No I/O happens here.
func (c *Channel) Initialize() error {
	if c.initialized.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "channel", "Initialize", "already initialized")
	}

	c.On(message.EventDidReceiveSettings, c.mirrorSettings)
	c.On(message.EventDidReceiveGlobalSettings, c.mirrorGlobalSettings)

	c.initialized.Store(true)
	return nil
}

// Start connects to the host and begins dispatching. The connection is
// maintained until Stop or ctx cancellation.
func (c *Channel) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.initialized.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "channel", "Start", "not initialized")
	}
	if !c.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "channel", "Start", "already started")
	}

	c.startTime = time.Now()

	c.wg.Add(2)
	go c.connectLoop(ctx)
	go c.dispatchLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the loops to exit.
func (c *Channel) Stop(timeout time.Duration) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.started.Load() {
		return nil
	}

	c.shutdownOnce.Do(func() { close(c.shutdown) })
	c.closeConn()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrTimeout, "channel", "Stop", "loops did not exit in time")
	}

	c.started.Store(false)
	return c.inbound.Close()
}

// Send writes env to the host. It fails fast with ErrNotConnected when
// the socket is down so caller timeouts and recovery engage instead of
// the message silently vanishing.
func (c *Channel) Send(env message.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.WrapInvalid(err, "channel", "Send", "marshal envelope")
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil || !c.connected.Load() {
		c.logger.Warn("send while disconnected", "event", env.Event)
		return errors.WrapTransient(errors.ErrNotConnected, "channel", "Send", "write "+env.Event)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "channel", "Send", "write "+env.Event)
	}

	c.messagesSent.Add(1)
	if c.metrics != nil {
		c.metrics.messagesSent.WithLabelValues(env.Event).Inc()
	}
	return nil
}

// IsConnected reports whether the socket is up and registered.
func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// Reconnect nudges the connect loop to retry immediately and waits
// until the connection is back or ctx expires. Used by the recovery
// engine's reconnect strategy.
func (c *Channel) Reconnect(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}
	if !c.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "channel", "Reconnect", "channel not started")
	}

	c.connMu.Lock()
	notify := c.connNotify
	c.connMu.Unlock()

	select {
	case c.reconnectNow <- struct{}{}:
	default:
	}

	// The ticker covers the race where the connection came back between
	// the connected check and capturing notify.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-notify:
			return nil
		case <-ticker.C:
			if c.connected.Load() {
				return nil
			}
		case <-c.shutdown:
			return errors.WrapInvalid(errors.ErrShuttingDown, "channel", "Reconnect", "channel stopping")
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "channel", "Reconnect", "wait for connection")
		}
	}
}

// connectLoop dials, registers, reads until disconnect, then retries on
// a fixed delay until shutdown.
func (c *Channel) connectLoop(ctx context.Context) {
	defer c.wg.Done()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			attempt++
			c.logger.Warn("host dial failed", "attempt", attempt, "error", err.Error())
			if c.metrics != nil {
				c.metrics.connectErrors.Inc()
			}
			if !c.waitForRetry(ctx) {
				return
			}
			continue
		}

		if err := c.register(conn); err != nil {
			attempt++
			c.logger.Error("registration handshake failed", "error", err.Error())
			_ = conn.Close()
			if !c.waitForRetry(ctx) {
				return
			}
			continue
		}

		if attempt > 0 {
			c.reconnects.Add(1)
			if c.metrics != nil {
				c.metrics.reconnects.Inc()
			}
		}
		attempt = 0

		c.connMu.Lock()
		c.conn = conn
		close(c.connNotify)
		c.connNotify = make(chan struct{})
		c.connMu.Unlock()
		c.connected.Store(true)
		if c.metrics != nil {
			c.metrics.connectionUp.Set(1)
		}
		c.logger.Info("connected to host", "url", c.url)

		c.readLoop(conn)

		c.connected.Store(false)
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		if c.metrics != nil {
			c.metrics.connectionUp.Set(0)
		}
		c.logger.Warn("host connection lost")

		if !c.waitForRetry(ctx) {
			return
		}
	}
}

// waitForRetry sleeps the fixed reconnect delay, cut short by an
// explicit Reconnect nudge. Returns false when shutting down.
func (c *Channel) waitForRetry(ctx context.Context) bool {
	timer := time.NewTimer(c.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.shutdown:
		return false
	case <-c.reconnectNow:
		return true
	case <-timer.C:
		return true
	}
}

// register sends the one-time handshake frame the host expects before
// it will route events to us.
func (c *Channel) register(conn *websocket.Conn) error {
	frame, err := json.Marshal(message.RegistrationRequest{
		Event: c.reg.RegisterEvent,
		UUID:  c.reg.PluginUUID,
	})
	if err != nil {
		return errors.WrapInvalid(err, "channel", "register", "marshal handshake")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.WrapTransient(err, "channel", "register", "write handshake")
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return nil
}

// readLoop reads frames until the connection drops.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := message.ParseEnvelope(data)
		if err != nil {
			c.parseErrors.Add(1)
			if c.metrics != nil {
				c.metrics.parseErrors.Inc()
			}
			c.logger.Warn("unparseable frame discarded", "error", err.Error())
			continue
		}

		c.lastActivity.Store(time.Now())
		c.messagesReceived.Add(1)
		if c.metrics != nil {
			c.metrics.messagesReceived.WithLabelValues(env.Event).Inc()
		}

		_ = c.inbound.Write(env)
	}
}

// dispatchLoop drains the inbound ring and fans envelopes out to
// subscribers. A ticker avoids busy-waiting on an empty ring.
func (c *Channel) dispatchLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(dispatchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			c.drainInbound()
			return
		case <-ticker.C:
			for {
				env, ok := c.inbound.Read()
				if !ok {
					break
				}
				c.dispatch(env)
			}
		}
	}
}

// drainInbound delivers whatever is still queued at shutdown.
func (c *Channel) drainInbound() {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env, ok := c.inbound.Read()
		if !ok {
			return
		}
		c.dispatch(env)
	}
}

func (c *Channel) closeConn() {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	c.connected.Store(false)

	if conn != nil {
		_ = conn.Close()
	}
}

// Settings returns the last settings payload mirrored from the host.
func (c *Channel) Settings() json.RawMessage {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// GlobalSettings returns the last global settings payload mirrored from
// the host.
func (c *Channel) GlobalSettings() json.RawMessage {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.globalSettings
}

func (c *Channel) mirrorSettings(env *message.Envelope) {
	var p message.SettingsPayload
	if err := env.DecodePayload(&p); err != nil {
		c.logger.Warn("settings payload not decodable", "error", err.Error())
		return
	}
	c.settingsMu.Lock()
	c.settings = p.Settings
	c.settingsMu.Unlock()
}

func (c *Channel) mirrorGlobalSettings(env *message.Envelope) {
	var p message.SettingsPayload
	if err := env.DecodePayload(&p); err != nil {
		c.logger.Warn("global settings payload not decodable", "error", err.Error())
		return
	}
	c.settingsMu.Lock()
	c.globalSettings = p.Settings
	c.settingsMu.Unlock()
}

// Health reports connection posture and dispatch pressure.
func (c *Channel) Health() health.Status {
	if !c.started.Load() {
		return health.NewWarning(c.name, "channel not started")
	}
	if !c.connected.Load() {
		return health.NewCritical(c.name, "disconnected from host").
			WithHint("reconnect loop is running, operations will fail until it succeeds")
	}

	util := float64(c.inbound.Size()) / float64(c.inbound.Capacity())
	if util > 0.8 {
		return health.NewWarning(c.name,
			fmt.Sprintf("dispatch buffer %.0f%% full", util*100)).
			WithHint("a subscriber is slow, inbound envelopes may be dropped")
	}
	return health.NewHealthy(c.name, "connected")
}
