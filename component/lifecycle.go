package component

import (
	"context"
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/health"
)

// State is the lifecycle state of a component.
type State int

const (
	// StateCreated means constructed but not initialized.
	StateCreated State = iota
	// StateInitialized means ready to start.
	StateInitialized
	// StateStarted means running.
	StateStarted
	// StateStopped means shut down.
	StateStopped
	// StateFailed means a lifecycle operation failed.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Component is anything with a stable name for logging and health
// reporting.
type Component interface {
	Name() string
}

// LifecycleComponent is a component with managed startup and shutdown.
type LifecycleComponent interface {
	Component
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// HealthReporter is implemented by components that can describe their
// own condition.
type HealthReporter interface {
	Health() health.Status
}
