package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/config"
)

// CLIConfig holds command-line configuration. The registration flags
// use the exact spellings the host passes when it launches the plugin.
type CLIConfig struct {
	Registration    config.Registration
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Host registration flags. The host supplies these; they have no
	// environment fallback.
	flag.IntVar(&cfg.Registration.Port, "port", 0,
		"Host websocket port on localhost (supplied by the host)")
	flag.StringVar(&cfg.Registration.PluginUUID, "pluginUUID", "",
		"Plugin identity echoed in the register frame (supplied by the host)")
	flag.StringVar(&cfg.Registration.RegisterEvent, "registerEvent", "",
		"Event tag of the register frame (supplied by the host)")
	flag.StringVar(&cfg.Registration.Info, "info", "",
		"Host environment JSON blob (supplied by the host)")

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("GOVEELIGHTS_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: GOVEELIGHTS_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("GOVEELIGHTS_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: GOVEELIGHTS_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("GOVEELIGHTS_LOG_FORMAT", "json"),
		"Log format: json, text (env: GOVEELIGHTS_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("GOVEELIGHTS_DEBUG", false),
		"Enable debug mode (env: GOVEELIGHTS_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("GOVEELIGHTS_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: GOVEELIGHTS_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if !cfg.Validate {
		if err := cfg.Registration.Validate(); err != nil {
			return err
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Govee light management plugin backend

Usage: %s -port <port> -pluginUUID <uuid> -registerEvent <event> -info <json> [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Launched by the host
  %s -port 28196 -pluginUUID 55F1... -registerEvent registerPlugin -info '{}'

  # Validate a configuration file
  %s --config=/path/to/config.json --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
