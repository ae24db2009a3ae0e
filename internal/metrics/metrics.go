// Package metrics exposes Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Connection metrics
	ConnectionsActive prometheus.Gauge
	MajlisMembers     prometheus.Gauge

	// Relay metrics
	EventsRelayed *prometheus.CounterVec
	BytesRelayed  prometheus.Counter
	SendDrops     prometheus.Counter
	EventsDropped prometheus.Counter
}

// New registers all relay metrics against the given registerer. Tests
// pass a fresh registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "majlis_connections_active",
			Help: "Number of live websocket connections",
		}),
		MajlisMembers: f.NewGauge(prometheus.GaugeOpts{
			Name: "majlis_members",
			Help: "Current member count of the majlis room",
		}),
		EventsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "majlis_events_relayed_total",
			Help: "Events fanned out, by event name",
		}, []string{"event"}),
		BytesRelayed: f.NewCounter(prometheus.CounterOpts{
			Name: "majlis_bytes_relayed_total",
			Help: "Total payload bytes fanned out",
		}),
		SendDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "majlis_send_drops_total",
			Help: "Frames dropped because a client send buffer was full",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "majlis_events_dropped_total",
			Help: "Inbound events dropped as malformed",
		}),
	}
}
