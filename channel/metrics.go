package channel

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/govee-light-management-sub000/metric"
)

// channelMetrics exports connection and traffic counters.
type channelMetrics struct {
	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	reconnects       prometheus.Counter
	connectErrors    prometheus.Counter
	parseErrors      prometheus.Counter
	connectionUp     prometheus.Gauge
}

func newChannelMetrics(registry *metric.MetricsRegistry) (*channelMetrics, error) {
	m := &channelMetrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "channel",
			Name:      "messages_received_total",
			Help:      "Inbound envelopes by event tag",
		}, []string{"event"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "channel",
			Name:      "messages_sent_total",
			Help:      "Outbound envelopes by event tag",
		}, []string{"event"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "channel",
			Name:      "reconnects_total",
			Help:      "Successful reconnections after a drop",
		}),
		connectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "channel",
			Name:      "connect_errors_total",
			Help:      "Failed dial or handshake attempts",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "channel",
			Name:      "parse_errors_total",
			Help:      "Inbound frames discarded as unparseable",
		}),
		connectionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "channel",
			Name:      "connection_up",
			Help:      "1 while connected and registered, else 0",
		}),
	}

	regs := []struct {
		name string
		err  error
	}{
		{"messages_received", registry.RegisterCounterVec("channel", "messages_received", m.messagesReceived)},
		{"messages_sent", registry.RegisterCounterVec("channel", "messages_sent", m.messagesSent)},
		{"reconnects", registry.RegisterCounter("channel", "reconnects", m.reconnects)},
		{"connect_errors", registry.RegisterCounter("channel", "connect_errors", m.connectErrors)},
		{"parse_errors", registry.RegisterCounter("channel", "parse_errors", m.parseErrors)},
		{"connection_up", registry.RegisterGauge("channel", "connection_up", m.connectionUp)},
	}
	for _, r := range regs {
		if r.err != nil {
			return nil, r.err
		}
	}
	return m, nil
}
