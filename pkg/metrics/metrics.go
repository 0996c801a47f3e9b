// Package metrics exposes Prometheus collectors for a monitor.
//
// A nil *Metrics is valid and records nothing, so the monitor can call the
// recording methods unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "simtap"

// Attachment results used as the "result" label.
const (
	ResultAttached = "attached"
	ResultRejected = "rejected"
)

// Metrics holds the monitor collectors.
type Metrics struct {
	PacketsReceived     prometheus.Counter
	PacketsDelivered    prometheus.Counter
	PacketsDropped      prometheus.Counter
	Attachments         *prometheus.CounterVec
	Disconnects         prometheus.Counter
	SubscriptionsActive prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Packet events received from the monitor service.",
		}),
		PacketsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_delivered_total",
			Help:      "Packets queued to subscriptions.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Packets discarded because the SIM was unknown, the payload was malformed or a subscription was closed.",
		}),
		Attachments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_total",
			Help:      "SIM attachment outcomes reported by the monitor service.",
		}, []string{"result"}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Monitor connections lost or closed.",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Open subscriptions.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PacketsReceived,
			m.PacketsDelivered,
			m.PacketsDropped,
			m.Attachments,
			m.Disconnects,
			m.SubscriptionsActive,
		)
	}
	return m
}

// PacketReceived counts an inbound packet event.
func (m *Metrics) PacketReceived() {
	if m != nil {
		m.PacketsReceived.Inc()
	}
}

// PacketDelivered counts a packet queued to one subscription.
func (m *Metrics) PacketDelivered() {
	if m != nil {
		m.PacketsDelivered.Inc()
	}
}

// PacketDropped counts a discarded packet.
func (m *Metrics) PacketDropped() {
	if m != nil {
		m.PacketsDropped.Inc()
	}
}

// Attachment counts an attachment outcome.
func (m *Metrics) Attachment(result string) {
	if m != nil {
		m.Attachments.WithLabelValues(result).Inc()
	}
}

// Disconnected counts a lost connection.
func (m *Metrics) Disconnected() {
	if m != nil {
		m.Disconnects.Inc()
	}
}

// SubscriptionOpened increments the active subscription gauge.
func (m *Metrics) SubscriptionOpened() {
	if m != nil {
		m.SubscriptionsActive.Inc()
	}
}

// SubscriptionClosed decrements the active subscription gauge.
func (m *Metrics) SubscriptionClosed() {
	if m != nil {
		m.SubscriptionsActive.Dec()
	}
}
