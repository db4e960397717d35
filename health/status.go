// Package health provides health monitoring functionality for components
package health

import (
	"regexp"
	"strings"
	"time"
)

// Level is the tri-level health state of a component.
type Level string

const (
	// LevelHealthy means the component operates within all thresholds.
	LevelHealthy Level = "healthy"
	// LevelWarning means at least one threshold is approached; the component
	// still functions.
	LevelWarning Level = "warning"
	// LevelCritical means at least one threshold is breached and degradation
	// is expected without intervention.
	LevelCritical Level = "critical"
)

// Pre-compiled regexes for message sanitization
var (
	httpURLRegex    = regexp.MustCompile(`https?://[^\s]+`)
	wsURLRegex      = regexp.MustCompile(`wss?://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a component
type Status struct {
	Component string    `json:"component"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Hints     []string  `json:"hints,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Metrics   *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains health-related metrics
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int           `json:"error_count"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Level == LevelHealthy
}

// IsWarning returns true if the status is at warning level
func (s Status) IsWarning() bool {
	return s.Level == LevelWarning
}

// IsCritical returns true if the status is critical
func (s Status) IsCritical() bool {
	return s.Level == LevelCritical
}

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithHint returns a copy of the status with a remediation hint appended
func (s Status) WithHint(hint string) Status {
	hints := make([]string, len(s.Hints), len(s.Hints)+1)
	copy(hints, s.Hints)
	s.Hints = append(hints, hint)
	return s
}

// New creates a status at the given level with a sanitized message
func New(component string, level Level, message string) Status {
	return Status{
		Component: component,
		Level:     level,
		Message:   SanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return New(component, LevelHealthy, message)
}

// NewWarning creates a new warning status
func NewWarning(component, message string) Status {
	return New(component, LevelWarning, message)
}

// NewCritical creates a new critical status
func NewCritical(component, message string) Status {
	return New(component, LevelCritical, message)
}

// Aggregate creates a status by folding component statuses together.
// The worst level wins: any critical makes the aggregate critical, otherwise
// any warning makes it warning.
func Aggregate(component string, statuses []Status) Status {
	if len(statuses) == 0 {
		return NewHealthy(component, "no components to aggregate")
	}

	level := LevelHealthy
	var hints []string
	for _, s := range statuses {
		if s.IsCritical() {
			level = LevelCritical
		} else if s.IsWarning() && level == LevelHealthy {
			level = LevelWarning
		}
		hints = append(hints, s.Hints...)
	}

	agg := New(component, level, string(level))
	agg.Hints = hints
	return agg
}

// SanitizeMessage removes potentially sensitive information from messages
// before they appear in user-visible diagnostics.
//
// Patterns removed:
//   - URLs (http://, https://, ws://, wss://) -> [URL]
//   - IP addresses -> [IP]
//   - Port numbers -> [PORT]
//   - Credentials (password=X, token=X, key=X, secret=X) -> [REDACTED]
func SanitizeMessage(msg string) string {
	if msg == "" {
		return ""
	}

	sanitized := msg

	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = wsURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lowerSanitized := strings.ToLower(sanitized)
	if strings.Contains(lowerSanitized, "password") || strings.Contains(lowerSanitized, "token") ||
		strings.Contains(lowerSanitized, "key") || strings.Contains(lowerSanitized, "secret") ||
		strings.Contains(lowerSanitized, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}

	return sanitized
}
