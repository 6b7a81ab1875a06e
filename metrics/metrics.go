// Package metrics exposes Prometheus instrumentation for the CSMR
// receiver. A nil *Set is valid and records nothing, so metrics can be
// left unwired in tools and tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds the receiver's Prometheus collectors.
type Set struct {
	framesReceived prometheus.Counter
	framesRendered prometheus.Counter
	framesDropped  prometheus.Counter
	unknownFrames  prometheus.Counter
	bytesReceived  prometheus.Counter
	idleTimeouts   prometheus.Counter
	sessionPhase   prometheus.Gauge
	sessionsEnded  *prometheus.CounterVec
}

// New creates the collector set and registers it with reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "csmr_frames_received_total",
			Help: "Total CSMR frames decoded from the wire.",
		}),
		framesRendered: factory.NewCounter(prometheus.CounterOpts{
			Name: "csmr_frames_rendered_total",
			Help: "Total frames the decoder reported rendered.",
		}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "csmr_frames_dropped_total",
			Help: "Total empty-payload video frames dropped.",
		}),
		unknownFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "csmr_unknown_frames_total",
			Help: "Total frames with reserved type tags, skipped.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "csmr_bytes_received_total",
			Help: "Total frame bytes received, headers included.",
		}),
		idleTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "csmr_idle_reads_total",
			Help: "Total reads that ended idle (timeout or clean EOF at a frame boundary).",
		}),
		sessionPhase: factory.NewGauge(prometheus.GaugeOpts{
			Name: "csmr_session_phase",
			Help: "Current session phase (0=idle 1=waiting 2=receiving 3=stopped 4=error).",
		}),
		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "csmr_sessions_ended_total",
			Help: "Sessions that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
	}
}

// FrameReceived records one decoded frame and its wire size.
func (m *Set) FrameReceived(frameBytes int) {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
	m.bytesReceived.Add(float64(frameBytes))
}

// FrameRendered records a decoder render notification.
func (m *Set) FrameRendered() {
	if m == nil {
		return
	}
	m.framesRendered.Inc()
}

// FrameDropped records an empty-payload video frame being skipped.
func (m *Set) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

// UnknownFrame records a reserved-type frame being skipped.
func (m *Set) UnknownFrame() {
	if m == nil {
		return
	}
	m.unknownFrames.Inc()
}

// IdleRead records a read that ended with no frame available.
func (m *Set) IdleRead() {
	if m == nil {
		return
	}
	m.idleTimeouts.Inc()
}

// SetPhase tracks the session phase gauge.
func (m *Set) SetPhase(phase int) {
	if m == nil {
		return
	}
	m.sessionPhase.Set(float64(phase))
}

// SessionEnded records a terminal outcome, "stopped" or "error".
func (m *Set) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(outcome).Inc()
}
