package component

import (
	"log/slog"

	"github.com/felixgeelhaar/govee-light-management-sub000/metric"
)

// Dependencies bundles the shared services components are constructed
// with, so wiring stays explicit and tests can substitute fakes.
type Dependencies struct {
	Logger          *slog.Logger            // structured logger, nil defaults to slog.Default()
	MetricsRegistry *metric.MetricsRegistry // Prometheus registry, may be nil
}

// GetLogger returns the configured logger or slog.Default().
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns the logger tagged with a component name.
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
