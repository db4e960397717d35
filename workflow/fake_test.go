package workflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/govee-light-management-sub000/config"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/cache"
	"github.com/felixgeelhaar/govee-light-management-sub000/testutil"
)

const (
	testWait = time.Second
	testPoll = 5 * time.Millisecond
)

type fakeRecoverer struct {
	mu      sync.Mutex
	calls   int
	result  bool
	beforeR func()
}

func (r *fakeRecoverer) AttemptRecovery(_ context.Context, _ error) bool {
	r.mu.Lock()
	r.calls++
	fn := r.beforeR
	result := r.result
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
	return result
}

func (r *fakeRecoverer) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (n *fakeNotifier) Show(toast notify.Toast) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, toast)
	return ""
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts)
}

func (n *fakeNotifier) last() notify.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.toasts[len(n.toasts)-1]
}

func newTestDomain(t *testing.T) *cache.Domain {
	t.Helper()
	store, err := cache.New[any](context.Background(), cache.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return cache.NewDomain(store, cache.DefaultTTLs())
}

// newTestDeps wires a machine against the fakes with short timeouts so
// timeout paths finish quickly.
func newTestDeps(t *testing.T, bus *testutil.FakeBus) Deps {
	t.Helper()
	return Deps{
		Bus:    bus,
		Cache:  newTestDomain(t),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeouts: config.TimeoutConfig{
			Validate: 100 * time.Millisecond,
			Fetch:    100 * time.Millisecond,
		},
	}
}
