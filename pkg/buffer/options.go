package buffer

import (
	"github.com/felixgeelhaar/govee-light-management-sub000/metric"
)

// Option configures a ring buffer.
type Option[T any] func(*ringOptions[T])

type ringOptions[T any] struct {
	overflowPolicy   OverflowPolicy
	dropCallback     DropCallback[T]
	metricsReg       *metric.MetricsRegistry
	metricsComponent string
}

// WithOverflowPolicy sets the behavior when the buffer is full.
// The default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *ringOptions[T]) {
		o.overflowPolicy = policy
	}
}

// WithDropCallback registers a callback invoked for each dropped item.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *ringOptions[T]) {
		o.dropCallback = cb
	}
}

// WithMetrics exposes buffer statistics as Prometheus metrics labeled
// with the given component name. Ignored when registry is nil.
func WithMetrics[T any](registry *metric.MetricsRegistry, component string) Option[T] {
	return func(o *ringOptions[T]) {
		if registry != nil && component != "" {
			o.metricsReg = registry
			o.metricsComponent = component
		}
	}
}

func applyOptions[T any](options ...Option[T]) *ringOptions[T] {
	opts := &ringOptions[T]{
		overflowPolicy: DropOldest,
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
