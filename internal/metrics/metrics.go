// Package metrics exposes Prometheus instrumentation for the BLE audio
// transport. All record methods are safe on a nil *Metrics so the
// transport can run uninstrumented (tests, the intercom CLI) without
// guarding every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport-level Prometheus collectors.
type Metrics struct {
	StreamsSent      prometheus.Counter
	StreamsFailed    prometheus.Counter
	StreamsCancelled prometheus.Counter
	ChunksSent       prometheus.Counter
	BytesSent        prometheus.Counter
	SendDuration     prometheus.Histogram

	InboundStreams   prometheus.Counter
	InboundAbandoned prometheus.Counter
	InboundBytes     prometheus.Counter

	ActiveSessions prometheus.Gauge
	UnitSize       prometheus.Gauge
}

// New creates and registers the transport metrics on the default
// Prometheus registry.
func New() *Metrics {
	return &Metrics{
		StreamsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_streams_sent_total",
			Help: "Audio streams fully delivered (start, data, end)",
		}),
		StreamsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_streams_failed_total",
			Help: "Audio streams aborted by a transport write failure",
		}),
		StreamsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_streams_cancelled_total",
			Help: "Audio streams aborted by session close or context cancellation",
		}),
		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_chunks_sent_total",
			Help: "Data chunks written to the speaker characteristic",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_bytes_sent_total",
			Help: "Payload bytes written to the speaker characteristic",
		}),
		SendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "solari_link_send_duration_seconds",
			Help:    "Wall time per completed stream send",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~3.5min
		}),
		InboundStreams: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_inbound_streams_total",
			Help: "Inbound microphone streams reassembled to completion",
		}),
		InboundAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_inbound_abandoned_total",
			Help: "Inbound streams abandoned by timeout or displacement",
		}),
		InboundBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solari_link_inbound_bytes_total",
			Help: "Payload bytes accumulated from inbound chunks",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "solari_link_active_sessions",
			Help: "Link sessions currently open",
		}),
		UnitSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "solari_link_unit_size_bytes",
			Help: "Most recently negotiated transmission unit size",
		}),
	}
}

// RecordStreamSent records a fully delivered outbound stream.
func (m *Metrics) RecordStreamSent(durationSeconds float64) {
	if m == nil {
		return
	}
	m.StreamsSent.Inc()
	m.SendDuration.Observe(durationSeconds)
}

// RecordStreamFailed records an outbound stream aborted by a write failure.
func (m *Metrics) RecordStreamFailed() {
	if m == nil {
		return
	}
	m.StreamsFailed.Inc()
}

// RecordStreamCancelled records an outbound stream aborted by cancellation.
func (m *Metrics) RecordStreamCancelled() {
	if m == nil {
		return
	}
	m.StreamsCancelled.Inc()
}

// RecordChunkSent records one written data chunk and its payload size.
func (m *Metrics) RecordChunkSent(payloadBytes int) {
	if m == nil {
		return
	}
	m.ChunksSent.Inc()
	m.BytesSent.Add(float64(payloadBytes))
}

// RecordInboundStream records a completed inbound stream.
func (m *Metrics) RecordInboundStream(bytes int) {
	if m == nil {
		return
	}
	m.InboundStreams.Inc()
	m.InboundBytes.Add(float64(bytes))
}

// RecordInboundAbandoned records an inbound stream dropped before its end
// marker arrived.
func (m *Metrics) RecordInboundAbandoned() {
	if m == nil {
		return
	}
	m.InboundAbandoned.Inc()
}

// SessionOpened bumps the active-session gauge and notes the negotiated
// unit size.
func (m *Metrics) SessionOpened(unitSize int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.UnitSize.Set(float64(unitSize))
}

// SessionClosed drops the active-session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
