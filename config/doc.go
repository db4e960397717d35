// Package config defines the plugin's runtime configuration.
//
// All tunables ship with defaults matching the values the plugin was
// designed around (cache TTLs, breaker thresholds, notification caps,
// operation timeouts). A JSON file can override any subset, and the
// host registration parameters arrive separately on the command line.
// SafeConfig wraps a Config for the rare cases where it is replaced
// while components read it concurrently.
package config
