package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus instrumentation Server reports when a
// non-nil *Metrics is attached to Config. A nil Metrics (the Config
// default) is a no-op at every call site below, keeping the library
// low-dependency for embedders who never construct one.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	HandshakeFailures   prometheus.Counter
	FramesReceived      prometheus.Counter
	FramesSent          prometheus.Counter
	BytesReceived       prometheus.Counter
	BytesSent           prometheus.Counter
}

// NewMetrics registers a Metrics group under namespace using the default
// Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ConnectionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted TCP connections.",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open connections.",
		}),
		HandshakeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Total number of WebSocket handshake attempts that did not qualify as an upgrade.",
		}),
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of WebSocket frames received.",
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of WebSocket frames sent.",
		}),
		BytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total number of payload bytes received across all frames.",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total number of payload bytes sent across all frames.",
		}),
	}
}

func (m *Metrics) connectionAccepted() {
	if m == nil {
		return
	}
	m.ConnectionsAccepted.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) handshakeFailed() {
	if m == nil {
		return
	}
	m.HandshakeFailures.Inc()
}

func (m *Metrics) frameReceived(bytes int) {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
	m.BytesReceived.Add(float64(bytes))
}

func (m *Metrics) frameSent(bytes int) {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
	m.BytesSent.Add(float64(bytes))
}
