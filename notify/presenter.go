package notify

import (
	"log/slog"

	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

// Presenter renders toasts. Implementations must be fast; callbacks run
// inside the manager's lock-free notification path.
type Presenter interface {
	Present(t Toast)
	Update(t Toast)
	Retract(id string)
}

// LogPresenter writes toast activity to the structured log. It is the
// default when no rendering surface is attached.
type LogPresenter struct {
	Logger *slog.Logger
}

func (p *LogPresenter) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Present implements Presenter.
func (p *LogPresenter) Present(t Toast) {
	p.logger().Info("toast shown",
		"id", t.ID, "type", string(t.Type), "title", t.Title, "category", t.Category)
}

// Update implements Presenter.
func (p *LogPresenter) Update(t Toast) {
	p.logger().Info("toast updated", "id", t.ID, "count", t.Count, "message", t.Message)
}

// Retract implements Presenter.
func (p *LogPresenter) Retract(id string) {
	p.logger().Debug("toast dismissed", "id", id)
}

// Sender is the outbound slice of the channel the presenter needs.
type Sender interface {
	Send(env message.Envelope) error
}

// ChannelPresenter forwards toast activity to the host as envelopes so
// the configuration UI can render them. Failures are logged and
// swallowed; notifications must never take down the path that produced
// them.
type ChannelPresenter struct {
	Bus     Sender
	Context string // workflow instance context echoed in envelopes
	Logger  *slog.Logger
}

func (p *ChannelPresenter) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *ChannelPresenter) send(event string, payload any) {
	env, err := message.NewEnvelope(event, p.Context, payload)
	if err != nil {
		p.logger().Warn("toast envelope build failed", "error", err.Error())
		return
	}
	if err := p.Bus.Send(env); err != nil {
		p.logger().Warn("toast delivery failed", "error", err.Error())
	}
}

// Present implements Presenter.
func (p *ChannelPresenter) Present(t Toast) {
	p.send("showNotification", t)
}

// Update implements Presenter.
func (p *ChannelPresenter) Update(t Toast) {
	p.send("updateNotification", t)
}

// Retract implements Presenter.
func (p *ChannelPresenter) Retract(id string) {
	p.send("dismissNotification", map[string]string{"id": id})
}
