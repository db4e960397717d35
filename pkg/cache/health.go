package cache

import (
	"fmt"

	"github.com/felixgeelhaar/govee-light-management-sub000/health"
)

// Health thresholds. Each dimension is judged independently; the worst level
// wins. The rolling hit rate only counts once the window has enough lookups
// to mean something.
const (
	fillWarningRatio  = 0.80
	fillCriticalRatio = 0.95

	memoryWarningRatio  = 0.80
	memoryCriticalRatio = 0.95

	hitRateWarning    = 0.50
	hitRateCritical   = 0.20
	hitRateMinSamples = 50
)

// Health derives a tri-level status from the size-fill ratio, the approximate
// memory ratio, and the rolling hit rate, with remediation hints for every
// dimension that is off.
func (s *Store[V]) Health(component string) health.Status {
	s.mu.Lock()
	size := len(s.items)
	memory := s.memory
	cfg := s.cfg
	s.mu.Unlock()

	fillRatio := float64(size) / float64(cfg.MaxEntries)
	memoryRatio := float64(memory) / float64(cfg.MaxMemory)
	hitRate, samples := s.stats.RollingHitRatio()

	level := health.LevelHealthy
	var hints []string

	raise := func(l health.Level) {
		if l == health.LevelCritical || (l == health.LevelWarning && level == health.LevelHealthy) {
			level = l
		}
	}

	switch {
	case fillRatio >= fillCriticalRatio:
		raise(health.LevelCritical)
		hints = append(hints, fmt.Sprintf(
			"store is %d%% full (%d/%d entries); raise MaxEntries or shorten TTLs",
			int(fillRatio*100), size, cfg.MaxEntries))
	case fillRatio >= fillWarningRatio:
		raise(health.LevelWarning)
		hints = append(hints, fmt.Sprintf(
			"store is filling up (%d/%d entries); eviction churn is likely soon",
			size, cfg.MaxEntries))
	}

	switch {
	case memoryRatio >= memoryCriticalRatio:
		raise(health.LevelCritical)
		hints = append(hints, fmt.Sprintf(
			"approximate memory at %d%% of budget; raise MaxMemory or cache smaller values",
			int(memoryRatio*100)))
	case memoryRatio >= memoryWarningRatio:
		raise(health.LevelWarning)
		hints = append(hints, "approximate memory nearing budget")
	}

	if samples >= hitRateMinSamples {
		switch {
		case hitRate < hitRateCritical:
			raise(health.LevelCritical)
			hints = append(hints, fmt.Sprintf(
				"rolling hit rate %.0f%%; cached keys rarely re-read, review key scheme and TTLs",
				hitRate*100))
		case hitRate < hitRateWarning:
			raise(health.LevelWarning)
			hints = append(hints, fmt.Sprintf("rolling hit rate %.0f%% is below target", hitRate*100))
		}
	}

	message := fmt.Sprintf("%d entries, %d bytes approx, hit rate %.0f%% over %d lookups",
		size, memory, hitRate*100, samples)

	status := health.New(component, level, message)
	status.Hints = hints
	return status
}
