package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
)

// Registration holds the parameters the host passes on the command
// line when it launches the plugin.
type Registration struct {
	Port          int    `json:"port"`          // host websocket port on localhost
	PluginUUID    string `json:"pluginUUID"`    // identity echoed in the register frame
	RegisterEvent string `json:"registerEvent"` // event tag of the register frame
	Info          string `json:"info"`          // host environment blob, opaque JSON
}

// Validate checks the registration parameters the host is required to
// supply.
func (r Registration) Validate() error {
	if r.Port <= 0 || r.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("port %d outside 1-65535", r.Port))
	}
	if r.PluginUUID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "pluginUUID empty")
	}
	if r.RegisterEvent == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "registerEvent empty")
	}
	return nil
}

// ChannelConfig tunes the duplex channel.
type ChannelConfig struct {
	ReconnectDelay time.Duration `json:"reconnectDelay"` // fixed delay between reconnect attempts
	BufferSize     int           `json:"bufferSize"`     // inbound dispatch ring capacity
	WriteTimeout   time.Duration `json:"writeTimeout"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	MaxEntries    int           `json:"maxEntries"`
	MaxMemory     int64         `json:"maxMemory"` // approximate bytes
	DefaultTTL    time.Duration `json:"defaultTTL"`
	APIKeyTTL     time.Duration `json:"apiKeyTTL"`
	LightsTTL     time.Duration `json:"lightsTTL"`
	GroupsTTL     time.Duration `json:"groupsTTL"`
	SweepInterval time.Duration `json:"sweepInterval"`
}

// RecoveryConfig tunes the circuit breakers.
type RecoveryConfig struct {
	BreakerThreshold int           `json:"breakerThreshold"` // consecutive failures before opening
	OpenCooldown     time.Duration `json:"openCooldown"`
	HalfOpenTimeout  time.Duration `json:"halfOpenTimeout"`
	HistoryLimit     int           `json:"historyLimit"`
}

// NotifyConfig tunes the notification queue.
type NotifyConfig struct {
	MaxActive         int           `json:"maxActive"`
	CategoryCap       int           `json:"categoryCap"`
	PriorityThreshold int           `json:"priorityThreshold"` // priority at or above evicts lower toasts
	GroupingWindow    time.Duration `json:"groupingWindow"`    // dedup window for similar toasts
	PromotionInterval time.Duration `json:"promotionInterval"`
}

// TimeoutConfig holds the per-operation deadlines.
type TimeoutConfig struct {
	Validate time.Duration `json:"validate"` // credential validation, save, delete
	Fetch    time.Duration `json:"fetch"`    // device listing
}

// MetricsConfig controls the optional local diagnostics endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// Config is the complete runtime configuration.
type Config struct {
	Channel  ChannelConfig  `json:"channel"`
	Cache    CacheConfig    `json:"cache"`
	Recovery RecoveryConfig `json:"recovery"`
	Notify   NotifyConfig   `json:"notify"`
	Timeouts TimeoutConfig  `json:"timeouts"`
	Metrics  MetricsConfig  `json:"metrics"`
	Logging  LoggingConfig  `json:"logging"`
}

// DefaultConfig returns the values the plugin was designed around.
func DefaultConfig() *Config {
	return &Config{
		Channel: ChannelConfig{
			ReconnectDelay: 2 * time.Second,
			BufferSize:     256,
			WriteTimeout:   5 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries:    100,
			MaxMemory:     5 << 20,
			DefaultTTL:    5 * time.Minute,
			APIKeyTTL:     10 * time.Minute,
			LightsTTL:     5 * time.Minute,
			GroupsTTL:     3 * time.Minute,
			SweepInterval: time.Minute,
		},
		Recovery: RecoveryConfig{
			BreakerThreshold: 5,
			OpenCooldown:     30 * time.Second,
			HalfOpenTimeout:  10 * time.Second,
			HistoryLimit:     100,
		},
		Notify: NotifyConfig{
			MaxActive:         3,
			CategoryCap:       1,
			PriorityThreshold: 8,
			GroupingWindow:    3 * time.Second,
			PromotionInterval: time.Second,
		},
		Timeouts: TimeoutConfig{
			Validate: 10 * time.Second,
			Fetch:    15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9270,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a JSON config file over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "config", "Load", "read file")
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse JSON")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "nil config")
	}
	if c.Channel.BufferSize <= 0 {
		return invalid("channel.bufferSize must be positive")
	}
	if c.Channel.ReconnectDelay <= 0 {
		return invalid("channel.reconnectDelay must be positive")
	}
	if c.Cache.MaxEntries <= 0 || c.Cache.MaxMemory <= 0 {
		return invalid("cache capacity must be positive")
	}
	if c.Recovery.BreakerThreshold <= 0 {
		return invalid("recovery.breakerThreshold must be positive")
	}
	if c.Notify.MaxActive <= 0 {
		return invalid("notify.maxActive must be positive")
	}
	if c.Notify.GroupingWindow < 0 {
		return invalid("notify.groupingWindow cannot be negative")
	}
	if c.Timeouts.Validate <= 0 || c.Timeouts.Fetch <= 0 {
		return invalid("timeouts must be positive")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port outside 1-65535")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return invalid("logging.format must be json or text")
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", msg)
}

// Clone deep-copies the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return DefaultConfig()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SafeConfig provides thread-safe replacement of a live configuration.
type SafeConfig struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewSafeConfig wraps cfg, substituting defaults when nil.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SafeConfig{cfg: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg.Clone()
}

// Update validates and atomically replaces the configuration.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Update", "nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
	return nil
}
