package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is an adjustable time source for deterministic breaker tests.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestTable(clock *testClock) *BreakerTable {
	table := NewBreakerTable(BreakerConfig{
		Threshold:       5,
		OpenCooldown:    30 * time.Second,
		HalfOpenTimeout: 10 * time.Second,
	})
	table.now = clock.Now
	return table
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clock := newTestClock()
	table := newTestTable(clock)

	for i := 0; i < 4; i++ {
		table.RecordFailure("op")
		assert.Equal(t, BreakerClosed, table.State("op"))
		assert.True(t, table.ShouldAttempt("op"))
	}

	// Fifth consecutive failure flips it open.
	table.RecordFailure("op")
	assert.Equal(t, BreakerOpen, table.State("op"))
	assert.False(t, table.ShouldAttempt("op"))
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := newTestClock()
	table := newTestTable(clock)

	for i := 0; i < 5; i++ {
		table.RecordFailure("op")
	}
	require.Equal(t, BreakerOpen, table.State("op"))

	// Still inside the cooldown.
	clock.Advance(29 * time.Second)
	assert.False(t, table.ShouldAttempt("op"))

	// Cooldown elapsed: exactly one probe is granted.
	clock.Advance(2 * time.Second)
	assert.True(t, table.ShouldAttempt("op"))
	assert.Equal(t, BreakerHalfOpen, table.State("op"))
	assert.False(t, table.ShouldAttempt("op"))
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	clock := newTestClock()
	table := newTestTable(clock)

	for i := 0; i < 5; i++ {
		table.RecordFailure("op")
	}
	clock.Advance(31 * time.Second)
	require.True(t, table.ShouldAttempt("op"))

	table.RecordSuccess("op")

	assert.Equal(t, BreakerClosed, table.State("op"))
	assert.True(t, table.ShouldAttempt("op"))
	assert.Equal(t, 0, table.Snapshot()["op"].FailureCount)
}

func TestBreakerProbeFailureReopensWithShorterWindow(t *testing.T) {
	clock := newTestClock()
	table := newTestTable(clock)

	for i := 0; i < 5; i++ {
		table.RecordFailure("op")
	}
	clock.Advance(31 * time.Second)
	require.True(t, table.ShouldAttempt("op"))

	table.RecordFailure("op")
	assert.Equal(t, BreakerOpen, table.State("op"))

	// Half-open cooldown is 10s, not the full 30s.
	clock.Advance(9 * time.Second)
	assert.False(t, table.ShouldAttempt("op"))
	clock.Advance(2 * time.Second)
	assert.True(t, table.ShouldAttempt("op"))
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	clock := newTestClock()
	table := newTestTable(clock)

	for i := 0; i < 5; i++ {
		table.RecordFailure("failing")
	}

	assert.False(t, table.ShouldAttempt("failing"))
	assert.True(t, table.ShouldAttempt("healthy"))
	assert.Equal(t, BreakerClosed, table.State("healthy"))
}

func TestBreakerSnapshotAndReset(t *testing.T) {
	clock := newTestClock()
	table := newTestTable(clock)

	table.RecordFailure("a")
	table.RecordFailure("a")
	table.RecordSuccess("b")

	snap := table.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 2, snap["a"].FailureCount)
	assert.Equal(t, BreakerClosed, snap["a"].State)

	table.Reset()
	assert.Empty(t, table.Snapshot())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
}
