// Package metric manages Prometheus metric registration for the plugin core.
//
// A MetricsRegistry wraps a private prometheus.Registry so that components can
// register their own counters, gauges, and histograms under a namespaced key
// without colliding, and so that tests can construct isolated registries. The
// registry is optional everywhere it is accepted: a nil registry disables
// metric export while statistics collection stays on.
//
// The optional Server exposes the registry on a local diagnostics port,
// together with a plain-text health endpoint. The plugin host never scrapes
// this; it exists for operator diagnostics during development.
package metric
