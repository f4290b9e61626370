// Package metrics exposes Prometheus collectors for the send/receive
// engines and the dispatcher. It replaces the teacher's hand-rolled
// atomic-counter TransferMetrics/ServerMetrics structs with real Prometheus
// instrumentation, grounded on the socket-statistics approach in
// runZeroInc/go-tcpinfo.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every metric this repository exports. The datastore
// and the proxy processes each create one instance and share it across
// their own components.
type Collectors struct {
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	SegmentsSent     prometheus.Counter
	SegmentsReceived prometheus.Counter
	Retransmissions  prometheus.Counter
	ControlRetries   prometheus.Counter
	ActiveTransfers  prometheus.Gauge
	TransferErrors   *prometheus.CounterVec
}

// New constructs and registers the collectors against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udprelay_bytes_sent_total",
			Help: "Total bytes of DATA frames (header and body) written to UDP, including retransmits, across all transfers.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udprelay_bytes_received_total",
			Help: "Total distinct data bytes admitted into a receive window, across all transfers.",
		}),
		SegmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udprelay_segments_sent_total",
			Help: "Total DATA packets transmitted, including retransmits.",
		}),
		SegmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udprelay_segments_received_total",
			Help: "Total DATA packets accepted into a receive window (duplicates excluded).",
		}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udprelay_retransmissions_total",
			Help: "Total whole-window retransmits triggered by a send-engine timeout.",
		}),
		ControlRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udprelay_control_retries_total",
			Help: "Total control-channel retries (handshake frames re-sent after timeout or flag mismatch).",
		}),
		ActiveTransfers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "udprelay_active_transfers",
			Help: "Number of transfers currently in progress.",
		}),
		TransferErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udprelay_transfer_errors_total",
			Help: "Total transfers that ended in an error, labeled by wire-level kind (dne/server).",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		c.BytesSent, c.BytesReceived,
		c.SegmentsSent, c.SegmentsReceived,
		c.Retransmissions, c.ControlRetries,
		c.ActiveTransfers, c.TransferErrors,
	)
	return c
}
