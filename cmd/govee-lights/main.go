// Package main implements the plugin's background control process. The
// host launches it with registration flags, it opens the websocket back
// to the host, and the workflow machines drive credential validation,
// light discovery and group management over that channel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/channel"
	"github.com/felixgeelhaar/govee-light-management-sub000/component"
	"github.com/felixgeelhaar/govee-light-management-sub000/config"
	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
	"github.com/felixgeelhaar/govee-light-management-sub000/metric"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/cache"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/retry"
	"github.com/felixgeelhaar/govee-light-management-sub000/recovery"
	"github.com/felixgeelhaar/govee-light-management-sub000/workflow"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "govee-lights"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Plugin failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	registry, metricServer, err := setupMetrics(cfg)
	if err != nil {
		return err
	}
	if metricServer != nil {
		defer func() { _ = metricServer.Stop() }()
	}

	domain, closeStore, err := setupCache(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := component.Dependencies{Logger: logger, MetricsRegistry: registry}

	ch, err := channel.New(cliCfg.Registration, cfg.Channel, deps)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	notifier := notify.NewManager(cfg.Notify, deps,
		notify.WithPresenter(&notify.ChannelPresenter{
			Bus:     ch,
			Context: cliCfg.Registration.PluginUUID,
			Logger:  logger,
		}))

	engine, err := setupRecovery(cfg, ch, domain, registry, logger)
	if err != nil {
		return err
	}

	machines := newMachines(ch, domain, engine, notifier, logger, cfg.Timeouts)

	return runWithSignalHandling(ctx, cliCfg, ch, notifier, machines, logger)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting plugin backend",
		"version", Version,
		"build_time", BuildTime,
		"host_port", cliCfg.Registration.Port)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupMetrics creates the registry and diagnostics endpoint when enabled.
func setupMetrics(cfg *config.Config) (*metric.MetricsRegistry, *metric.Server, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil, nil
	}

	registry := metric.NewMetricsRegistry()
	server := metric.NewServer(cfg.Metrics.Port, "/metrics", registry)
	if err := server.Start(); err != nil {
		return nil, nil, fmt.Errorf("start metrics server: %w", err)
	}
	slog.Info("Metrics endpoint up", "address", server.Address())

	return registry, server, nil
}

// setupCache creates the response store and the domain key layer on top.
func setupCache(
	ctx context.Context,
	cfg *config.Config,
	registry *metric.MetricsRegistry,
) (*cache.Domain, func(), error) {
	storeCfg := cache.Config{
		MaxEntries:    cfg.Cache.MaxEntries,
		MaxMemory:     cfg.Cache.MaxMemory,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		SweepInterval: cfg.Cache.SweepInterval,
	}

	var opts []cache.Option[any]
	if registry != nil {
		opts = append(opts, cache.WithMetrics[any](registry, "domain"))
	}

	store, err := cache.New[any](ctx, storeCfg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create cache: %w", err)
	}

	domain := cache.NewDomain(store, cache.TTLs{
		APIKeyValidation: cfg.Cache.APIKeyTTL,
		Lights:           cfg.Cache.LightsTTL,
		Groups:           cfg.Cache.GroupsTTL,
	})
	return domain, func() { _ = store.Close() }, nil
}

// setupRecovery wires the standard strategy table against the channel
// and the domain cache.
func setupRecovery(
	cfg *config.Config,
	ch *channel.Channel,
	domain *cache.Domain,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*recovery.Engine, error) {
	strategies := []recovery.Strategy{
		recovery.ReconnectStrategy(ch),
		recovery.ClearCacheStrategy(domain),
		recovery.WaitAndRetryStrategy(retry.Quick(), func(context.Context) error {
			if ch.IsConnected() {
				return nil
			}
			return errors.WrapTransient(errors.ErrNotConnected, "main", "probe", "check channel")
		}),
	}

	opts := []recovery.Option{recovery.WithLogger(logger)}
	if registry != nil {
		opts = append(opts, recovery.WithMetrics(registry))
	}

	engine, err := recovery.New(recovery.Config{
		Breaker: recovery.BreakerConfig{
			Threshold:       cfg.Recovery.BreakerThreshold,
			OpenCooldown:    cfg.Recovery.OpenCooldown,
			HalfOpenTimeout: cfg.Recovery.HalfOpenTimeout,
		},
		HistoryLimit: cfg.Recovery.HistoryLimit,
	}, strategies, opts...)
	if err != nil {
		return nil, fmt.Errorf("create recovery engine: %w", err)
	}
	return engine, nil
}

// machines bundles the three workflow state machines.
type machines struct {
	connection *workflow.Connection
	discovery  *workflow.Discovery
	groups     *workflow.Groups
}

func newMachines(
	ch *channel.Channel,
	domain *cache.Domain,
	engine *recovery.Engine,
	notifier *notify.Manager,
	logger *slog.Logger,
	timeouts config.TimeoutConfig,
) *machines {
	deps := workflow.Deps{
		Bus:      ch,
		Cache:    domain,
		Recovery: engine,
		Notifier: notifier,
		Logger:   logger,
		Timeouts: timeouts,
	}
	return &machines{
		connection: workflow.NewConnection(deps),
		discovery:  workflow.NewDiscovery(deps),
		groups:     workflow.NewGroups(deps),
	}
}

// settingsPayload is the slice of the host settings blob the driver
// reads.
type settingsPayload struct {
	Settings struct {
		APIKey string `json:"apiKey"`
	} `json:"settings"`
}

// wireSettingsDriver drives the machines from the host's settings
// events: a credential arriving in global settings triggers connect,
// then discovery and group loading.
func wireSettingsDriver(ctx context.Context, ch *channel.Channel, m *machines, logger *slog.Logger) {
	handler := func(env *message.Envelope) {
		var payload settingsPayload
		if len(env.Payload) == 0 || json.Unmarshal(env.Payload, &payload) != nil {
			return
		}
		apiKey := payload.Settings.APIKey
		if apiKey == "" || apiKey == m.connection.APIKey() {
			return
		}

		go func() {
			if err := m.connection.Connect(ctx, apiKey); err != nil {
				logger.Warn("connect from settings failed", "error", err.Error())
				return
			}
			if err := m.discovery.Fetch(ctx, apiKey); err != nil {
				logger.Warn("light discovery failed", "error", err.Error())
			}
			if err := m.groups.Load(ctx, apiKey); err != nil {
				logger.Warn("group load failed", "error", err.Error())
			}
		}()
	}

	ch.On(message.EventDidReceiveGlobalSettings, handler)
	ch.On(message.EventDidReceiveSettings, handler)
}

// waitForChannel blocks until the websocket is up, with a quick backoff
// so a slow host start does not fail the launch.
func waitForChannel(ctx context.Context, ch *channel.Channel) error {
	return retry.Do(ctx, retry.Quick(), func() error {
		if ch.IsConnected() {
			return nil
		}
		return errors.WrapTransient(errors.ErrNotConnected, "main", "waitForChannel", "probe channel")
	})
}

// runWithSignalHandling starts the components and blocks until a
// shutdown signal arrives.
func runWithSignalHandling(
	ctx context.Context,
	cliCfg *CLIConfig,
	ch *channel.Channel,
	notifier *notify.Manager,
	m *machines,
	logger *slog.Logger,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := notifier.Initialize(); err != nil {
		return fmt.Errorf("initialize notifier: %w", err)
	}
	if err := notifier.Start(signalCtx); err != nil {
		return fmt.Errorf("start notifier: %w", err)
	}

	if err := ch.Initialize(); err != nil {
		return fmt.Errorf("initialize channel: %w", err)
	}

	wireSettingsDriver(signalCtx, ch, m, logger)

	if err := ch.Start(signalCtx); err != nil {
		return fmt.Errorf("start channel: %w", err)
	}

	if err := waitForChannel(signalCtx, ch); err != nil {
		slog.Warn("Host websocket not reachable yet, reconnect loop continues", "error", err)
	} else {
		slog.Info("Plugin registered with host")
	}

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	return shutdown(cliCfg.ShutdownTimeout, ch, notifier, m)
}

// shutdown stops components in reverse start order. The machines are
// invalidated first so late responses cannot mutate state during
// teardown.
func shutdown(timeout time.Duration, ch *channel.Channel, notifier *notify.Manager, m *machines) error {
	m.connection.Disconnect()
	m.discovery.Reset()
	m.groups.Reset()

	if err := ch.Stop(timeout); err != nil {
		slog.Error("Error stopping channel", "error", err)
	}
	if err := notifier.Stop(timeout); err != nil {
		slog.Error("Error stopping notifier", "error", err)
	}

	slog.Info("Plugin shutdown complete")
	return nil
}
