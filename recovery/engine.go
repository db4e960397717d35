package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/health"
	"github.com/felixgeelhaar/govee-light-management-sub000/metric"
)

const defaultHistoryLimit = 100

// Attempt records one strategy execution for diagnostics.
type Attempt struct {
	Strategy  string        `json:"strategy"`
	Error     string        `json:"error"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Stats summarizes engine activity. Diagnostic only, never consulted
// for recovery decisions.
type Stats struct {
	TotalAttempts int64                      `json:"totalAttempts"`
	Successes     int64                      `json:"successes"`
	SuccessRate   float64                    `json:"successRate"`
	StrategyUsage map[string]int64           `json:"strategyUsage"`
	Breakers      map[string]BreakerSnapshot `json:"breakers"`
}

// Config tunes the engine.
type Config struct {
	Breaker      BreakerConfig
	HistoryLimit int
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Breaker:      DefaultBreakerConfig(),
		HistoryLimit: defaultHistoryLimit,
	}
}

// Engine walks an ordered strategy table to repair recoverable
// failures. Safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	strategies []Strategy
	breakers   *BreakerTable
	logger     *slog.Logger

	history      []Attempt
	historyNext  int
	historyLimit int

	totalAttempts int64
	successes     int64
	usage         map[string]int64

	metrics *engineMetrics
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// WithMetrics exports attempt counters to the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) error {
		if registry == nil {
			return nil
		}
		m, err := newEngineMetrics(registry)
		if err != nil {
			return errors.WrapTransient(err, "recovery", "New", "metrics registration failed")
		}
		e.metrics = m
		return nil
	}
}

// New creates an engine with the given strategy table. Strategies are
// consulted in the order supplied.
func New(cfg Config, strategies []Strategy, opts ...Option) (*Engine, error) {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	e := &Engine{
		strategies:   strategies,
		breakers:     NewBreakerTable(cfg.Breaker),
		logger:       slog.Default(),
		history:      make([]Attempt, 0, cfg.HistoryLimit),
		historyLimit: cfg.HistoryLimit,
		usage:        make(map[string]int64),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AttemptRecovery tries each matching strategy in order and reports
// whether one of them succeeded. Errors classified as invalid or fatal
// return false immediately without consuming any breaker budget.
func (e *Engine) AttemptRecovery(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return e.Recover(ctx, err) == nil
}

// Recover tries each matching strategy in order. Returns nil when one
// succeeds, the original error unchanged when it is not transient, and
// ErrRecoveryExhausted when every matching strategy failed or was
// breaker-blocked.
func (e *Engine) Recover(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	class := errors.Classify(err)
	if class != errors.ErrorTransient {
		e.logger.Debug("recovery skipped for non-recoverable error",
			"class", class.String(), "error", err.Error())
		return err
	}

	for i := range e.strategies {
		s := &e.strategies[i]
		if s.Matches == nil || !s.Matches(err) {
			continue
		}
		if !e.breakers.ShouldAttempt(s.Name) {
			e.logger.Debug("strategy skipped, breaker open", "strategy", s.Name)
			continue
		}

		start := time.Now()
		recErr := e.runStrategy(ctx, s)
		elapsed := time.Since(start)

		e.record(s.Name, err, recErr == nil, elapsed)

		if recErr == nil {
			e.breakers.RecordSuccess(s.Name)
			e.logger.Info("recovery succeeded",
				"strategy", s.Name, "duration", elapsed, "cause", err.Error())
			return nil
		}

		e.breakers.RecordFailure(s.Name)
		e.logger.Warn("recovery strategy failed",
			"strategy", s.Name, "duration", elapsed, "error", recErr.Error())
	}

	return errors.WrapTransient(errors.ErrRecoveryExhausted,
		"recovery", "Recover", "repair")
}

// runStrategy executes one strategy, converting a panic into a failure.
func (e *Engine) runStrategy(ctx context.Context, s *Strategy) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapFatal(fmt.Errorf("panic: %v", r),
				"recovery", s.Name, "strategy panicked")
		}
	}()
	return s.Recover(ctx)
}

func (e *Engine) record(strategy string, cause error, success bool, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	attempt := Attempt{
		Strategy:  strategy,
		Error:     cause.Error(),
		Success:   success,
		Duration:  elapsed,
		Timestamp: time.Now(),
	}

	if len(e.history) < e.historyLimit {
		e.history = append(e.history, attempt)
	} else {
		e.history[e.historyNext] = attempt
		e.historyNext = (e.historyNext + 1) % e.historyLimit
	}

	e.totalAttempts++
	e.usage[strategy]++
	if success {
		e.successes++
	}

	if e.metrics != nil {
		e.metrics.recordAttempt(strategy, success)
	}
}

// ShouldAttemptOperation exposes the breaker table for callers that
// guard an operation by key instead of routing through a strategy.
func (e *Engine) ShouldAttemptOperation(key string) bool {
	return e.breakers.ShouldAttempt(key)
}

// RecordSuccess closes the breaker for key.
func (e *Engine) RecordSuccess(key string) {
	e.breakers.RecordSuccess(key)
}

// RecordFailure counts a failure against key's breaker.
func (e *Engine) RecordFailure(key string) {
	e.breakers.RecordFailure(key)
}

// History returns the rolling attempt log, oldest first.
func (e *Engine) History() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Attempt, 0, len(e.history))
	if len(e.history) < e.historyLimit {
		out = append(out, e.history...)
		return out
	}
	out = append(out, e.history[e.historyNext:]...)
	out = append(out, e.history[:e.historyNext]...)
	return out
}

// RecoveryStats returns aggregate counters and breaker snapshots.
func (e *Engine) RecoveryStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	usage := make(map[string]int64, len(e.usage))
	for k, v := range e.usage {
		usage[k] = v
	}

	rate := 0.0
	if e.totalAttempts > 0 {
		rate = float64(e.successes) / float64(e.totalAttempts)
	}

	return Stats{
		TotalAttempts: e.totalAttempts,
		Successes:     e.successes,
		SuccessRate:   rate,
		StrategyUsage: usage,
		Breakers:      e.breakers.Snapshot(),
	}
}

// Health reports breaker posture. Open breakers degrade the status.
func (e *Engine) Health(component string) health.Status {
	snapshot := e.breakers.Snapshot()

	open := 0
	for _, b := range snapshot {
		if b.State == BreakerOpen {
			open++
		}
	}

	switch {
	case len(snapshot) > 0 && open == len(snapshot):
		return health.NewCritical(component, "all recovery breakers open").
			WithHint("check host connection and restart the plugin if the condition persists")
	case open > 0:
		return health.NewWarning(component,
			fmt.Sprintf("%d recovery breaker(s) open", open)).
			WithHint("recent recovery attempts are failing, recovery is throttled")
	default:
		return health.NewHealthy(component, "recovery engine ready")
	}
}

// engineMetrics exports attempt counters.
type engineMetrics struct {
	attempts *prometheus.CounterVec
}

func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	m := &engineMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "recovery",
			Name:      "attempts_total",
			Help:      "Recovery strategy executions by outcome",
		}, []string{"strategy", "outcome"}),
	}
	if err := registry.RegisterCounterVec("recovery", "attempts", m.attempts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *engineMetrics) recordAttempt(strategy string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.attempts.WithLabelValues(strategy, outcome).Inc()
}
