package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Minute, cfg.Cache.APIKeyTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.LightsTTL)
	assert.Equal(t, 3*time.Minute, cfg.Cache.GroupsTTL)
	assert.Equal(t, 5, cfg.Recovery.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Recovery.OpenCooldown)
	assert.Equal(t, 10*time.Second, cfg.Recovery.HalfOpenTimeout)
	assert.Equal(t, 3, cfg.Notify.MaxActive)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Validate)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Fetch)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"cache": {"maxEntries": 50}, "logging": {"level": "debug"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Cache.APIKeyTTL)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero buffer", func(c *Config) { c.Channel.BufferSize = 0 }},
		{"zero reconnect delay", func(c *Config) { c.Channel.ReconnectDelay = 0 }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Recovery.BreakerThreshold = 0 }},
		{"zero max active", func(c *Config) { c.Notify.MaxActive = 0 }},
		{"zero validate timeout", func(c *Config) { c.Timeouts.Validate = 0 }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestRegistrationValidate(t *testing.T) {
	reg := Registration{
		Port:          28196,
		PluginUUID:    "ABC123",
		RegisterEvent: "registerPlugin",
	}
	require.NoError(t, reg.Validate())

	bad := reg
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = reg
	bad.PluginUUID = ""
	assert.Error(t, bad.Validate())

	bad = reg
	bad.RegisterEvent = ""
	assert.Error(t, bad.Validate())
}

func TestSafeConfigUpdate(t *testing.T) {
	sc := NewSafeConfig(nil)
	require.NoError(t, sc.Get().Validate())

	next := DefaultConfig()
	next.Cache.MaxEntries = 42
	require.NoError(t, sc.Update(next))
	assert.Equal(t, 42, sc.Get().Cache.MaxEntries)

	// Mutating the returned copy does not leak back in.
	got := sc.Get()
	got.Cache.MaxEntries = 1
	assert.Equal(t, 42, sc.Get().Cache.MaxEntries)

	bad := DefaultConfig()
	bad.Notify.MaxActive = 0
	assert.Error(t, sc.Update(bad))
	assert.Error(t, sc.Update(nil))
}
