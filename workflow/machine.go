package workflow

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/govee-light-management-sub000/config"
	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/health"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
	"github.com/felixgeelhaar/govee-light-management-sub000/pkg/cache"
)

// Notifier is the slice of the notification manager the machines use.
type Notifier interface {
	Show(t notify.Toast) string
}

// Deps bundles the shared services a machine is constructed with.
// Cache, Recovery and Notifier may be nil; the machine then skips the
// corresponding behavior, which keeps unit tests small.
type Deps struct {
	Bus      Bus
	Cache    *cache.Domain
	Recovery Recoverer
	Notifier Notifier
	Logger   *slog.Logger
	Timeouts config.TimeoutConfig
}

func (d *Deps) logger(machineName string) *slog.Logger {
	if d.Logger != nil {
		return d.Logger.With("machine", machineName)
	}
	return slog.Default().With("machine", machineName)
}

func (d *Deps) timeouts() config.TimeoutConfig {
	t := d.Timeouts
	if t.Validate <= 0 {
		t.Validate = config.DefaultConfig().Timeouts.Validate
	}
	if t.Fetch <= 0 {
		t.Fetch = config.DefaultConfig().Timeouts.Fetch
	}
	return t
}

// base carries the cross-cutting per-machine discipline: one in-flight
// operation, an error slot cleared on entering a working state, and a
// generation counter that discards stale responses. The embedding
// machine's mutex guards all fields.
type base struct {
	busy       bool
	err        error
	generation uint64
}

// begin marks the machine busy and clears the prior error. Fails when
// an operation is already in flight. Caller holds the machine lock.
func (b *base) begin(machine, op string) (uint64, error) {
	if b.busy {
		return 0, errors.WrapInvalid(errors.ErrAlreadyStarted, machine, op,
			"operation already in flight")
	}
	b.busy = true
	b.err = nil
	return b.generation, nil
}

// stale reports whether gen belongs to a discarded operation. Caller
// holds the machine lock.
func (b *base) stale(gen uint64) bool {
	return gen != b.generation
}

// invalidate discards any in-flight operation's eventual result.
// Caller holds the machine lock.
func (b *base) invalidate() {
	b.generation++
	b.busy = false
}

// runWithRecovery executes op; on a recoverable failure it consults the
// recovery engine and, when recovery succeeds, retries op exactly once.
// Invalid errors bypass recovery entirely.
func runWithRecovery(ctx context.Context, r Recoverer, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if errors.IsInvalid(err) {
		return err
	}
	if r == nil || !r.AttemptRecovery(ctx, err) {
		return err
	}
	return op()
}

// failureToast emits exactly one notification for a terminal failure.
// The message is sanitized so credentials and addresses never reach the
// user.
func failureToast(n Notifier, category, title string, err error) {
	if n == nil {
		return
	}
	n.Show(notify.Toast{
		Type:     notify.TypeError,
		Category: category,
		Title:    title,
		Message:  health.SanitizeMessage(err.Error()),
		Priority: 7,
	})
}
