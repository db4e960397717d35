package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/govee-light-management-sub000/component"
	"github.com/felixgeelhaar/govee-light-management-sub000/config"
	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
)

// Manager owns the active toast set and the overflow queue. All methods
// are safe for concurrent use.
type Manager struct {
	name      string
	cfg       config.NotifyConfig
	logger    *slog.Logger
	presenter Presenter
	now       func() time.Time

	mu      sync.Mutex
	active  map[string]*Toast
	queue   []*Toast          // priority desc, arrival asc
	sigToID map[string]string // duplicate signature -> live toast id
	sigSeen map[string]time.Time
	sigBase map[string]string // original message before "(N similar)" suffixing

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	wg           sync.WaitGroup
}

var _ component.LifecycleComponent = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithPresenter sets the rendering callback target. Defaults to a
// LogPresenter.
func WithPresenter(p Presenter) Option {
	return func(m *Manager) {
		if p != nil {
			m.presenter = p
		}
	}
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a notification manager.
func NewManager(cfg config.NotifyConfig, deps component.Dependencies, opts ...Option) *Manager {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 3
	}
	if cfg.CategoryCap <= 0 {
		cfg.CategoryCap = 1
	}
	if cfg.PriorityThreshold <= 0 {
		cfg.PriorityThreshold = 8
	}
	if cfg.PromotionInterval <= 0 {
		cfg.PromotionInterval = time.Second
	}

	m := &Manager{
		name:     "notify",
		cfg:      cfg,
		logger:   deps.GetLoggerWithComponent("notify"),
		now:      time.Now,
		active:   make(map[string]*Toast),
		sigToID:  make(map[string]string),
		sigSeen:  make(map[string]time.Time),
		sigBase:  make(map[string]string),
		shutdown: make(chan struct{}),
	}
	m.presenter = &LogPresenter{Logger: m.logger}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements component.Component.
func (m *Manager) Name() string {
	return m.name
}

// Initialize implements component.LifecycleComponent.
func (m *Manager) Initialize() error {
	return nil
}

// Start runs the promotion/expiry ticker until Stop or ctx cancellation.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "notify", "Start", "already started")
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PromotionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.shutdown:
				return
			case <-ticker.C:
				m.Tick()
			}
		}
	}()
	return nil
}

// Stop halts the ticker. Pending toasts are discarded.
func (m *Manager) Stop(timeout time.Duration) error {
	m.shutdownOnce.Do(func() { close(m.shutdown) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrTimeout, "notify", "Stop", "ticker did not exit")
	}
}

// Show admits a toast and returns its id. Duplicates inside the
// grouping window collapse into the existing toast, whose id is
// returned instead.
func (m *Manager) Show(t Toast) string {
	m.mu.Lock()
	var callbacks []func()
	defer func() {
		m.mu.Unlock()
		for _, cb := range callbacks {
			cb()
		}
	}()

	now := m.now()
	sig := t.signature()

	// Duplicate suppression inside the grouping window.
	if id, ok := m.sigToID[sig]; ok && now.Sub(m.sigSeen[sig]) <= m.cfg.GroupingWindow {
		if existing := m.find(id); existing != nil {
			existing.Count++
			base := m.sigBase[sig]
			if base != "" {
				existing.Message = fmt.Sprintf("%s (%d similar)", base, existing.Count)
			} else {
				existing.Message = fmt.Sprintf("(%d similar)", existing.Count)
			}
			m.sigSeen[sig] = now

			updated := *existing
			callbacks = append(callbacks, func() { m.presenter.Update(updated) })
			return id
		}
	}

	t.ID = uuid.New().String()
	t.CreatedAt = now
	t.Count = 1
	m.sigToID[sig] = t.ID
	m.sigSeen[sig] = now
	m.sigBase[sig] = t.Message

	callbacks = append(callbacks, m.admit(&t)...)
	return t.ID
}

// admit places a new toast per the capacity policy. Caller holds mu.
func (m *Manager) admit(t *Toast) []func() {
	var callbacks []func()

	if t.Category != "" && m.categoryCount(t.Category) >= m.cfg.CategoryCap {
		// Replace the lowest-priority toast of the same category.
		if victim := m.lowestActive(t.Category); victim != nil {
			callbacks = append(callbacks, m.dismissLocked(victim.ID)...)
		}
		callbacks = append(callbacks, m.activate(t))
		return callbacks
	}

	if len(m.active) < m.cfg.MaxActive {
		callbacks = append(callbacks, m.activate(t))
		return callbacks
	}

	if t.Priority >= m.cfg.PriorityThreshold {
		if victim := m.lowestActive(""); victim != nil && victim.Priority < t.Priority {
			callbacks = append(callbacks, m.dismissLocked(victim.ID)...)
			callbacks = append(callbacks, m.activate(t))
			return callbacks
		}
	}

	m.enqueue(t)
	return callbacks
}

func (m *Manager) activate(t *Toast) func() {
	m.active[t.ID] = t
	shown := *t
	return func() { m.presenter.Present(shown) }
}

// enqueue inserts by priority desc, ties broken by arrival order.
func (m *Manager) enqueue(t *Toast) {
	idx := sort.Search(len(m.queue), func(i int) bool {
		return m.queue[i].Priority < t.Priority
	})
	m.queue = append(m.queue, nil)
	copy(m.queue[idx+1:], m.queue[idx:])
	m.queue[idx] = t
}

// categoryCount counts active toasts in a category. Caller holds mu.
func (m *Manager) categoryCount(category string) int {
	n := 0
	for _, t := range m.active {
		if t.Category == category {
			n++
		}
	}
	return n
}

// lowestActive returns the lowest-priority active toast, optionally
// restricted to a category. Ties resolve to the oldest. Caller holds mu.
func (m *Manager) lowestActive(category string) *Toast {
	var victim *Toast
	for _, t := range m.active {
		if category != "" && t.Category != category {
			continue
		}
		if victim == nil ||
			t.Priority < victim.Priority ||
			(t.Priority == victim.Priority && t.CreatedAt.Before(victim.CreatedAt)) {
			victim = t
		}
	}
	return victim
}

func (m *Manager) find(id string) *Toast {
	if t, ok := m.active[id]; ok {
		return t
	}
	for _, t := range m.queue {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Dismiss removes a toast by id, active or queued, and promotes from
// the queue if a slot freed.
func (m *Manager) Dismiss(id string) {
	m.mu.Lock()
	callbacks := m.dismissLocked(id)
	callbacks = append(callbacks, m.promote()...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// DismissCategory removes every toast of a category, active and queued.
func (m *Manager) DismissCategory(category string) {
	m.mu.Lock()
	var callbacks []func()
	for id, t := range m.active {
		if t.Category == category {
			callbacks = append(callbacks, m.dismissLocked(id)...)
		}
	}
	kept := m.queue[:0]
	for _, t := range m.queue {
		if t.Category == category {
			m.clearSig(t)
		} else {
			kept = append(kept, t)
		}
	}
	m.queue = kept
	callbacks = append(callbacks, m.promote()...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// dismissLocked removes one toast without promotion. Caller holds mu.
func (m *Manager) dismissLocked(id string) []func() {
	if t, ok := m.active[id]; ok {
		delete(m.active, id)
		m.clearSig(t)
		return []func(){func() { m.presenter.Retract(id) }}
	}
	for i, t := range m.queue {
		if t.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.clearSig(t)
			return nil
		}
	}
	return nil
}

func (m *Manager) clearSig(t *Toast) {
	sig := t.signature()
	if m.sigToID[sig] == t.ID {
		delete(m.sigToID, sig)
		delete(m.sigSeen, sig)
		delete(m.sigBase, sig)
	}
}

// promote fills free slots from the queue, skipping toasts whose
// category is at its cap. Caller holds mu.
func (m *Manager) promote() []func() {
	var callbacks []func()
	for len(m.active) < m.cfg.MaxActive {
		idx := -1
		for i, t := range m.queue {
			if t.Category != "" && m.categoryCount(t.Category) >= m.cfg.CategoryCap {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			break
		}
		t := m.queue[idx]
		m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
		callbacks = append(callbacks, m.activate(t))
	}
	return callbacks
}

// Tick expires timed-out toasts and promotes from the queue. Called by
// the background ticker; exported so tests can drive it directly.
func (m *Manager) Tick() {
	m.mu.Lock()
	var callbacks []func()
	now := m.now()
	for id, t := range m.active {
		if t.expired(now) {
			callbacks = append(callbacks, m.dismissLocked(id)...)
		}
	}
	callbacks = append(callbacks, m.promote()...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Active returns the visible toasts, newest last.
func (m *Manager) Active() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Toast, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Queued returns the waiting toasts in promotion order.
func (m *Manager) Queued() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Toast, 0, len(m.queue))
	for _, t := range m.queue {
		out = append(out, *t)
	}
	return out
}
