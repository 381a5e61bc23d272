// Package rdtmetrics instruments a rdtnet.Registry with Prometheus
// counters and gauges, in the style of a standalone prometheus collector
// registered against an http.Handler via promhttp.
package rdtmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes per-registry counters. Fields are exported metric
// handles rather than a single opaque struct so callers can pass them
// straight to a session's hooks without re-deriving labels each time.
type Collector struct {
	SessionsActive    prometheus.Gauge
	SessionsTotal     prometheus.Counter
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	PacketsRetransmit prometheus.Counter
	PacketsCorrupt    prometheus.Counter
	PacketsDuplicate  prometheus.Counter
	PacketsOutOfRange prometheus.Counter
}

// NewCollector builds a Collector and registers all of its metrics against
// reg under the rdt_ namespace.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rdt",
			Name:      "sessions_active",
			Help:      "Number of reliable-transport sessions currently live.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "sessions_total",
			Help:      "Total number of sessions created.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "bytes_sent_total",
			Help:      "Application bytes framed into DATA packets.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "bytes_received_total",
			Help:      "Application bytes delivered to output.",
		}),
		PacketsRetransmit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "packets_retransmitted_total",
			Help:      "Packets resent by the retransmission timer.",
		}),
		PacketsCorrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "packets_corrupt_total",
			Help:      "Inbound packets dropped for failing checksum/length validation.",
		}),
		PacketsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "packets_duplicate_total",
			Help:      "Inbound DATA/EOF packets already delivered or buffered.",
		}),
		PacketsOutOfRange: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt",
			Name:      "packets_out_of_window_total",
			Help:      "Inbound DATA/EOF packets outside the receive window.",
		}),
	}
	reg.MustRegister(
		c.SessionsActive, c.SessionsTotal, c.BytesSent, c.BytesReceived,
		c.PacketsRetransmit, c.PacketsCorrupt, c.PacketsDuplicate, c.PacketsOutOfRange,
	)
	return c
}
