// Package metrics exposes the Prometheus collectors a running voice
// session reports against: reconnects, auth failures, dropped and
// concealed frames.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the narrow surface VoiceSession and its subsystems use to
// report counters. A nil *Recorder is valid and records nothing, so
// callers that don't care about metrics can simply not set one.
type Recorder struct {
	Reconnects     prometheus.Counter
	AuthFailures   prometheus.Counter
	PacketsDropped prometheus.Counter
	FramesConcealed prometheus.Counter
	JitterDepth    prometheus.Gauge
	ActiveSenders  prometheus.Gauge
}

// NewRecorder builds a Recorder registered against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice",
			Name:      "reconnects_total",
			Help:      "Number of times the session has reconnected to the signaling endpoint.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice",
			Name:      "auth_failures_total",
			Help:      "Number of inbound RTP packets that failed authenticated decryption.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice",
			Name:      "packets_dropped_total",
			Help:      "Number of inbound RTP packets dropped (decrypt failure or stale sequence).",
		}),
		FramesConcealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice",
			Name:      "frames_concealed_total",
			Help:      "Number of playback frames synthesized by packet loss concealment.",
		}),
		JitterDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voice",
			Name:      "jitter_buffer_depth_frames",
			Help:      "Current depth of the jitter buffer, summed across active senders.",
		}),
		ActiveSenders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voice",
			Name:      "active_senders",
			Help:      "Number of remote participants currently primed in the jitter buffer.",
		}),
	}

	if reg != nil {
		reg.MustRegister(r.Reconnects, r.AuthFailures, r.PacketsDropped, r.FramesConcealed, r.JitterDepth, r.ActiveSenders)
	}

	return r
}
