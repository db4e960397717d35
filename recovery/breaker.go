package recovery

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle state of one circuit breaker key.
type BreakerState int

const (
	// BreakerClosed allows all attempts.
	BreakerClosed BreakerState = iota

	// BreakerOpen blocks attempts until the cooldown elapses.
	BreakerOpen

	// BreakerHalfOpen allows exactly one probe attempt.
	BreakerHalfOpen
)

// String returns a human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSnapshot is a point-in-time view of one breaker key, used for
// diagnostics only.
type BreakerSnapshot struct {
	State        BreakerState `json:"state"`
	FailureCount int          `json:"failureCount"`
	LastFailure  time.Time    `json:"lastFailure,omitempty"`
	NextRetry    time.Time    `json:"nextRetry,omitempty"`
}

type breakerEntry struct {
	state         BreakerState
	failures      int
	lastFailure   time.Time
	nextRetry     time.Time
	probeInFlight bool
}

// BreakerConfig tunes the breaker table.
type BreakerConfig struct {
	Threshold       int           // consecutive failures before opening
	OpenCooldown    time.Duration // wait before a half-open probe is allowed
	HalfOpenTimeout time.Duration // shorter cooldown after a failed probe
}

// DefaultBreakerConfig returns the standard thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:       5,
		OpenCooldown:    30 * time.Second,
		HalfOpenTimeout: 10 * time.Second,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.OpenCooldown <= 0 {
		c.OpenCooldown = def.OpenCooldown
	}
	if c.HalfOpenTimeout <= 0 {
		c.HalfOpenTimeout = def.HalfOpenTimeout
	}
	return c
}

// BreakerTable tracks one circuit breaker per string key. Keys are
// created lazily in the closed state.
type BreakerTable struct {
	mu      sync.Mutex
	cfg     BreakerConfig
	entries map[string]*breakerEntry
	now     func() time.Time
}

// NewBreakerTable creates a breaker table with the given thresholds.
func NewBreakerTable(cfg BreakerConfig) *BreakerTable {
	return &BreakerTable{
		cfg:     cfg.withDefaults(),
		entries: make(map[string]*breakerEntry),
		now:     time.Now,
	}
}

func (t *BreakerTable) entry(key string) *breakerEntry {
	e, ok := t.entries[key]
	if !ok {
		e = &breakerEntry{state: BreakerClosed}
		t.entries[key] = e
	}
	return e
}

// ShouldAttempt reports whether an attempt for key is allowed right
// now. An open breaker whose cooldown has elapsed moves to half-open
// and grants exactly one probe; further calls are blocked until that
// probe's outcome is recorded.
func (t *BreakerTable) ShouldAttempt(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(key)
	switch e.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if t.now().Before(e.nextRetry) {
			return false
		}
		e.state = BreakerHalfOpen
		e.probeInFlight = true
		return true
	case BreakerHalfOpen:
		if e.probeInFlight {
			return false
		}
		e.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess closes the breaker for key and clears its failure count.
func (t *BreakerTable) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(key)
	e.state = BreakerClosed
	e.failures = 0
	e.probeInFlight = false
}

// RecordFailure counts a failure for key. Reaching the threshold, or
// failing a half-open probe, opens the breaker. A failed probe reopens
// with the shorter half-open cooldown.
func (t *BreakerTable) RecordFailure(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(key)
	e.failures++
	e.lastFailure = t.now()

	switch {
	case e.state == BreakerHalfOpen:
		e.state = BreakerOpen
		e.probeInFlight = false
		e.nextRetry = t.now().Add(t.cfg.HalfOpenTimeout)
	case e.failures >= t.cfg.Threshold:
		e.state = BreakerOpen
		e.nextRetry = t.now().Add(t.cfg.OpenCooldown)
	}
}

// State returns the current state for key without side effects.
func (t *BreakerTable) State(key string) BreakerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return BreakerClosed
	}
	return e.state
}

// Snapshot copies the current breaker states for diagnostics.
func (t *BreakerTable) Snapshot() map[string]BreakerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]BreakerSnapshot, len(t.entries))
	for key, e := range t.entries {
		out[key] = BreakerSnapshot{
			State:        e.state,
			FailureCount: e.failures,
			LastFailure:  e.lastFailure,
			NextRetry:    e.nextRetry,
		}
	}
	return out
}

// Reset removes all breaker state, returning every key to closed.
func (t *BreakerTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*breakerEntry)
}
