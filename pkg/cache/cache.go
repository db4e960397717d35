package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
)

// EvictCallback is called when an entry is evicted from the store.
type EvictCallback[V any] func(key string, value V)

// Config holds the store's capacity and timing budgets.
type Config struct {
	// MaxEntries caps the number of entries. <= 0 falls back to 100.
	MaxEntries int
	// MaxMemory caps the approximate footprint in bytes. <= 0 falls back to 5 MiB.
	MaxMemory int64
	// DefaultTTL applies to Set calls without an explicit TTL. <= 0 falls back
	// to 5 minutes.
	DefaultTTL time.Duration
	// SweepInterval is how often the background sweep purges expired entries.
	// <= 0 falls back to 1 minute.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 100
	}
	if c.MaxMemory <= 0 {
		c.MaxMemory = 5 << 20
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// entry is one stored value with its access metadata. Access metadata mutates
// on Get/Touch; everything else is fixed at Set time.
type entry[V any] struct {
	key         string
	value       V
	size        int64 // approximate JSON-serialized footprint
	ttl         time.Duration
	createdAt   time.Time
	expiresAt   time.Time
	accessCount int64
	accessedAt  time.Time
}

// Store is a TTL+LRU cache keyed by string, parameterized by value type V.
type Store[V any] struct {
	mu     sync.Mutex
	cfg    Config
	items  map[string]*list.Element // key -> list element
	order  *list.List               // doubly-linked list, front = most recently used
	memory int64                    // running approximate footprint

	stats   *Statistics      // always initialized
	metrics *cacheMetrics    // optional, if metrics enabled
	evictFn EvictCallback[V] // optional callback
	now     func() time.Time // injectable clock for deterministic tests

	shutdown chan struct{}
	done     chan struct{}
	closeMu  sync.Once
}

// New creates a store and starts its background sweep with the caller's
// context. Returns an error if metrics registration fails when requested.
func New[V any](ctx context.Context, cfg Config, opts ...Option[V]) (*Store[V], error) {
	options := applyOptions(opts...)
	cfg = cfg.withDefaults()

	var metrics *cacheMetrics
	if options.metricsReg != nil && options.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(options.metricsReg, options.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
	}

	s := &Store[V]{
		cfg:      cfg,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		stats:    NewStatistics(),
		metrics:  metrics,
		evictFn:  options.evictCallback,
		now:      options.clock,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}

	go s.sweep(ctx)

	return s, nil
}

// Get retrieves a value by key. A hit refreshes the LRU position and access
// metadata; an entry past its TTL is removed and reported as a miss.
func (s *Store[V]) Get(key string) (V, bool) {
	// Registered before the unlock defer so the callback fires after the
	// lock is released.
	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		s.recordMiss()
		var zero V
		return zero, false
	}

	e := element.Value.(*entry[V])
	if s.expired(e) {
		evicted = append(evicted, s.removeElement(element))
		s.recordEviction()
		s.recordMiss()
		var zero V
		return zero, false
	}

	s.order.MoveToFront(element)
	e.accessCount++
	e.accessedAt = s.now()
	s.recordHit()
	return e.value, true
}

// Has reports whether a still-valid entry exists without refreshing its LRU
// position.
func (s *Store[V]) Has(key string) bool {
	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		return false
	}
	e := element.Value.(*entry[V])
	if s.expired(e) {
		evicted = append(evicted, s.removeElement(element))
		s.recordEviction()
		return false
	}
	return true
}

// Set stores a value under key. An explicit ttl overrides the default. Before
// a new insert exceeds either budget, LRU entries are evicted until both the
// entry count and the memory footprint fit.
func (s *Store[V]) Set(key string, value V, ttl ...time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	entryTTL := s.cfg.DefaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		entryTTL = ttl[0]
	}
	size := approximateSize(value) + int64(len(key))

	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if element, exists := s.items[key]; exists {
		e := element.Value.(*entry[V])
		s.memory += size - e.size
		e.value = value
		e.size = size
		e.ttl = entryTTL
		e.expiresAt = now.Add(entryTTL)
		s.order.MoveToFront(element)
		evicted = s.evictUntilFit()
		s.recordSet()
		return false, nil
	}

	e := &entry[V]{
		key:        key,
		value:      value,
		size:       size,
		ttl:        entryTTL,
		createdAt:  now,
		expiresAt:  now.Add(entryTTL),
		accessedAt: now,
	}
	s.items[key] = s.order.PushFront(e)
	s.memory += size

	evicted = s.evictUntilFit()
	s.recordSet()
	return true, nil
}

// Delete removes an entry by key. Returns true if the key existed.
func (s *Store[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		return false, nil
	}
	evicted = append(evicted, s.removeElement(element))
	s.recordDelete()
	return true, nil
}

// Touch extends the life of a still-valid entry. An explicit ttl replaces the
// entry's TTL; otherwise the original TTL restarts from now. Returns false
// for missing or already-expired entries.
func (s *Store[V]) Touch(key string, ttl ...time.Duration) bool {
	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		return false
	}
	e := element.Value.(*entry[V])
	if s.expired(e) {
		evicted = append(evicted, s.removeElement(element))
		s.recordEviction()
		return false
	}

	if len(ttl) > 0 && ttl[0] > 0 {
		e.ttl = ttl[0]
	}
	e.expiresAt = s.now().Add(e.ttl)
	return true
}

// InvalidatePattern deletes every entry whose key matches the glob pattern
// (path.Match syntax). Returns the number of entries removed.
func (s *Store[V]) InvalidatePattern(pattern string) (int, error) {
	// Validate the pattern once up front
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, errors.WrapInvalid(err, "cache", "InvalidatePattern", "parse pattern")
	}

	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for element := s.order.Front(); element != nil; {
		next := element.Next()
		e := element.Value.(*entry[V])
		if ok, _ := path.Match(pattern, e.key); ok {
			evicted = append(evicted, s.removeElement(element))
			s.recordDelete()
			removed++
		}
		element = next
	}
	return removed, nil
}

// GetOrSet returns the cached value for key, or invokes compute on a miss and
// caches its result. A compute error is returned as-is and never cached.
func (s *Store[V]) GetOrSet(key string, compute func() (V, error), ttl ...time.Duration) (V, error) {
	if value, ok := s.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	if _, err := s.Set(key, value, ttl...); err != nil {
		var zero V
		return zero, err
	}
	return value, nil
}

// Clear removes all entries from the store.
func (s *Store[V]) Clear() {
	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evictFn != nil {
		for element := s.order.Back(); element != nil; element = element.Prev() {
			evicted = append(evicted, element.Value.(*entry[V]))
		}
	}

	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.memory = 0
	s.syncSizeStats()
}

// Size returns the current number of entries.
func (s *Store[V]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// MemoryUsage returns the approximate footprint in bytes.
func (s *Store[V]) MemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory
}

// Keys returns all still-valid keys in LRU order, most recently used first.
func (s *Store[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for element := s.order.Front(); element != nil; element = element.Next() {
		e := element.Value.(*entry[V])
		if !s.expired(e) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Stats returns the store's statistics.
func (s *Store[V]) Stats() *Statistics {
	return s.stats
}

// Close stops the background sweep. Safe to call more than once.
func (s *Store[V]) Close() error {
	s.closeMu.Do(func() {
		close(s.shutdown)
	})

	select {
	case <-s.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for sweep goroutine to finish")
	}
}

// expired must be called with the mutex held.
func (s *Store[V]) expired(e *entry[V]) bool {
	return s.now().After(e.expiresAt)
}

// evictUntilFit evicts LRU entries until both the entry count and the memory
// footprint are within budget. Must be called with the mutex held. Returns
// the removed entries so the caller can notify after unlocking.
func (s *Store[V]) evictUntilFit() []*entry[V] {
	var evicted []*entry[V]
	for len(s.items) > s.cfg.MaxEntries || s.memory > s.cfg.MaxMemory {
		element := s.order.Back()
		if element == nil {
			break
		}
		evicted = append(evicted, s.removeElement(element))
		s.recordEviction()
	}
	return evicted
}

// removeElement removes an element from both the list and the map and returns
// its entry. Must be called with the mutex held; the eviction callback is the
// caller's responsibility, after the lock is released.
func (s *Store[V]) removeElement(element *list.Element) *entry[V] {
	e := element.Value.(*entry[V])
	delete(s.items, e.key)
	s.order.Remove(element)
	s.memory -= e.size
	if s.memory < 0 {
		s.memory = 0
	}
	return e
}

// notifyEvicted invokes the eviction callback for each removed entry. Runs
// without the mutex held so the callback can re-enter the store.
func (s *Store[V]) notifyEvicted(evicted []*entry[V]) {
	if s.evictFn == nil {
		return
	}
	for _, e := range evicted {
		s.evictFn(e.key, e.value)
	}
}

// sweep proactively purges expired entries on a fixed interval so an idle
// store does not hold stale data until the next access.
func (s *Store[V]) sweep(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired removes all expired entries.
func (s *Store[V]) removeExpired() {
	var evicted []*entry[V]
	defer func() { s.notifyEvicted(evicted) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	for element := s.order.Front(); element != nil; {
		next := element.Next()
		e := element.Value.(*entry[V])
		if s.expired(e) {
			evicted = append(evicted, s.removeElement(element))
			s.recordEviction()
		}
		element = next
	}
}

// Stats bookkeeping. All must be called with the mutex held where size is read.

func (s *Store[V]) recordHit() {
	s.stats.Hit()
	if s.metrics != nil {
		s.metrics.recordHit()
	}
}

func (s *Store[V]) recordMiss() {
	s.stats.Miss()
	if s.metrics != nil {
		s.metrics.recordMiss()
	}
}

func (s *Store[V]) recordSet() {
	s.stats.Set()
	s.syncSizeStats()
	if s.metrics != nil {
		s.metrics.recordSet()
	}
}

func (s *Store[V]) recordDelete() {
	s.stats.Delete()
	s.syncSizeStats()
	if s.metrics != nil {
		s.metrics.recordDelete()
	}
}

func (s *Store[V]) recordEviction() {
	s.stats.Eviction()
	s.syncSizeStats()
	if s.metrics != nil {
		s.metrics.recordEviction()
	}
}

func (s *Store[V]) syncSizeStats() {
	s.stats.UpdateSize(int64(len(s.items)))
	s.stats.UpdateMemoryUsage(s.memory)
	if s.metrics != nil {
		s.metrics.updateSize(len(s.items))
		s.metrics.updateMemory(s.memory)
	}
}

// approximateSize estimates a value's footprint as its JSON-serialized size.
// Values that fail to serialize count a flat 64 bytes.
func approximateSize(v any) int64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 64
	}
	return int64(len(data))
}

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
