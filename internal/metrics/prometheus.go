// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the persona chat service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Chat metrics
	ChatRequests       *prometheus.CounterVec
	ChatFailures       *prometheus.CounterVec
	ChatFragments      prometheus.Counter
	ChatStreamDuration prometheus.Histogram

	// Live session metrics
	LiveSessionsActive  prometheus.Gauge
	LiveSessionsStarted prometheus.Counter
	LiveMicFailures     *prometheus.CounterVec
	LiveFramesSent      prometheus.Counter
	LiveBuffersQueued   prometheus.Counter
	LiveInterruptions   prometheus.Counter
	LiveTurns           prometheus.Counter

	// Persona metrics
	PersonasCustom prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_chat_requests_total",
			Help: "Total number of chat requests by personality and mode",
		}, []string{"personality", "mode"}),
		ChatFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_chat_failures_total",
			Help: "Total number of failed chat requests by personality",
		}, []string{"personality"}),
		ChatFragments: f.NewCounter(prometheus.CounterOpts{
			Name: "personachat_chat_fragments_total",
			Help: "Total number of streamed reply fragments",
		}),
		ChatStreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_chat_stream_duration_seconds",
			Help:    "Duration of streamed chat replies",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),

		LiveSessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "personachat_live_sessions_active",
			Help: "Current number of open live voice sessions",
		}),
		LiveSessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "personachat_live_sessions_started_total",
			Help: "Total number of live voice sessions that reached OPEN",
		}),
		LiveMicFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_live_mic_failures_total",
			Help: "Total number of microphone acquisition failures by cause",
		}, []string{"kind"}),
		LiveFramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "personachat_live_frames_sent_total",
			Help: "Total number of capture frames sent upstream",
		}),
		LiveBuffersQueued: f.NewCounter(prometheus.CounterOpts{
			Name: "personachat_live_buffers_queued_total",
			Help: "Total number of response audio buffers scheduled for playback",
		}),
		LiveInterruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "personachat_live_interruptions_total",
			Help: "Total number of barge-in interruptions",
		}),
		LiveTurns: f.NewCounter(prometheus.CounterOpts{
			Name: "personachat_live_turns_total",
			Help: "Total number of voice turns flushed to conversations",
		}),

		PersonasCustom: f.NewGauge(prometheus.GaugeOpts{
			Name: "personachat_personas_custom",
			Help: "Current number of user-created personas",
		}),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "personachat_ws_connections",
			Help: "Current number of connected websocket clients",
		}),
	}
}

// RecordChatRequest counts a chat request.
func (m *Metrics) RecordChatRequest(personality, mode string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(personality, mode).Inc()
}

// RecordChatFailure counts a failed chat request.
func (m *Metrics) RecordChatFailure(personality string) {
	if m == nil {
		return
	}
	m.ChatFailures.WithLabelValues(personality).Inc()
}

// RecordChatFragment counts one streamed fragment.
func (m *Metrics) RecordChatFragment() {
	if m == nil {
		return
	}
	m.ChatFragments.Inc()
}

// ObserveChatStream records the duration of a finished stream.
func (m *Metrics) ObserveChatStream(seconds float64) {
	if m == nil {
		return
	}
	m.ChatStreamDuration.Observe(seconds)
}

// LiveOpened records a live session reaching OPEN.
func (m *Metrics) LiveOpened() {
	if m == nil {
		return
	}
	m.LiveSessionsStarted.Inc()
	m.LiveSessionsActive.Inc()
}

// LiveClosed records an open live session closing.
func (m *Metrics) LiveClosed() {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Dec()
}

// RecordMicFailure counts a microphone failure by kind.
func (m *Metrics) RecordMicFailure(kind string) {
	if m == nil {
		return
	}
	m.LiveMicFailures.WithLabelValues(kind).Inc()
}

// RecordFrameSent counts a capture frame sent upstream.
func (m *Metrics) RecordFrameSent() {
	if m == nil {
		return
	}
	m.LiveFramesSent.Inc()
}

// RecordBufferQueued counts a scheduled playback buffer.
func (m *Metrics) RecordBufferQueued() {
	if m == nil {
		return
	}
	m.LiveBuffersQueued.Inc()
}

// RecordInterruption counts a barge-in.
func (m *Metrics) RecordInterruption() {
	if m == nil {
		return
	}
	m.LiveInterruptions.Inc()
}

// RecordTurn counts a flushed voice turn.
func (m *Metrics) RecordTurn() {
	if m == nil {
		return
	}
	m.LiveTurns.Inc()
}

// SetCustomPersonas sets the custom persona gauge.
func (m *Metrics) SetCustomPersonas(n int) {
	if m == nil {
		return
	}
	m.PersonasCustom.Set(float64(n))
}

// WSConnected adjusts the websocket connection gauge.
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))
}
