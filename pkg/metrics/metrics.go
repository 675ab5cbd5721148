// Package metrics exposes the relay's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame kinds.
const (
	FrameBlock   = "block"
	FramePartial = "partial"
	FrameError   = "error"
)

// Upstream failure reasons.
const (
	UpstreamConnect = "connect"
	UpstreamStatus  = "status"
	UpstreamBody    = "body"
	UpstreamRead    = "read"
)

// Transcript job statuses.
const (
	JobPersisted = "persisted"
	JobDropped   = "dropped"
	JobFailed    = "failed"
)

var (
	streamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragrelay_streams_total",
		Help: "Relayed chat streams grouped by outcome",
	}, []string{"outcome"})

	streamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragrelay_stream_duration_seconds",
		Help:    "Duration of relayed chat streams",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"outcome"})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ragrelay_active_streams",
		Help: "Chat streams currently being relayed",
	})

	framesForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragrelay_frames_forwarded_total",
		Help: "Frames written downstream grouped by kind",
	}, []string{"kind"})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragrelay_upstream_failures_total",
		Help: "Upstream failures grouped by reason",
	}, []string{"reason"})

	sessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragrelay_sessions_issued_total",
		Help: "Client session ids handed out by the bootstrap endpoint",
	})

	transcriptJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragrelay_transcript_jobs_total",
		Help: "Transcript recording jobs grouped by status",
	}, []string{"status"})
)

// StreamStarted marks a stream as active.
func StreamStarted() {
	activeStreams.Inc()
}

// ObserveStream records the end of a stream.
func ObserveStream(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	activeStreams.Dec()
	streamsTotal.WithLabelValues(outcome).Inc()
	streamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// FrameForwarded counts one frame written downstream.
func FrameForwarded(kind string) {
	framesForwarded.WithLabelValues(kind).Inc()
}

// UpstreamFailure counts one upstream failure.
func UpstreamFailure(reason string) {
	upstreamFailures.WithLabelValues(reason).Inc()
}

// SessionIssued counts one bootstrapped client session.
func SessionIssued() {
	sessionsIssued.Inc()
}

// TranscriptJob counts one transcript job by status.
func TranscriptJob(status string) {
	transcriptJobs.WithLabelValues(status).Inc()
}
