package notify

import (
	"time"
)

// ToastType is the visual flavor of a notification.
type ToastType string

const (
	// TypeInfo is a neutral informational toast.
	TypeInfo ToastType = "info"
	// TypeSuccess reports a completed operation.
	TypeSuccess ToastType = "success"
	// TypeWarning reports a degraded but working condition.
	TypeWarning ToastType = "warning"
	// TypeError reports a failed operation.
	TypeError ToastType = "error"
)

// Common categories used by the workflow machines. A category limits
// how many of its toasts are visible concurrently.
const (
	CategoryConnection = "api-connection"
	CategoryDiscovery  = "discovery"
	CategoryGroups     = "groups"
)

// Toast is one notification. Priority runs 0 (lowest) to 10; toasts at
// or above the manager's priority threshold may evict lower ones when
// capacity is full.
type Toast struct {
	ID       string        `json:"id"`
	Type     ToastType     `json:"type"`
	Title    string        `json:"title"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"` // 0 means no natural timeout
	Category string        `json:"category,omitempty"`
	Priority int           `json:"priority"`

	CreatedAt time.Time `json:"createdAt"`
	Count     int       `json:"count"` // similar arrivals collapsed into this toast
}

// signature identifies toasts considered duplicates of each other.
func (t Toast) signature() string {
	return string(t.Type) + "\x00" + t.Category + "\x00" + t.Title
}

// expired reports whether the toast outlived its natural duration.
func (t Toast) expired(now time.Time) bool {
	return t.Duration > 0 && now.Sub(t.CreatedAt) >= t.Duration
}
