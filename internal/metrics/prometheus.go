package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the companion link service
type Metrics struct {
	// Discovery metrics
	DiscoveryAttempts  prometheus.Counter
	DiscoverySuccesses prometheus.Counter
	DiscoveryTimeouts  prometheus.Counter
	FallbackProbes     prometheus.Counter
	FallbackSuccesses  prometheus.Counter

	// Frame queue metrics
	QueueDepth     prometheus.Gauge
	FramesPushed   prometheus.Counter
	FramesConsumed prometheus.Counter

	// Recognition metrics
	PartialResults  prometheus.Counter
	FinalResults    prometheus.Counter
	FilteredResults prometheus.Counter
	EngineErrors    prometheus.Counter
	UtteranceLength prometheus.Histogram

	// Transport metrics
	MessagesSent       prometheus.Counter
	MessagesBuffered   prometheus.Counter
	MessagesRejected   prometheus.Counter
	MessagesDispatched prometheus.Counter
	SendFailures       prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Discovery metrics
		DiscoveryAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_discovery_attempts_total",
			Help: "Total number of discovery sessions started",
		}),
		DiscoverySuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_discovery_successes_total",
			Help: "Total number of discovery sessions that found a companion",
		}),
		DiscoveryTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_discovery_timeouts_total",
			Help: "Total number of discovery sessions that timed out",
		}),
		FallbackProbes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_fallback_probes_total",
			Help: "Total number of fallback health probes sent",
		}),
		FallbackSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_fallback_successes_total",
			Help: "Total number of fallback probes confirming a companion",
		}),

		// Frame queue metrics
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "companion_frame_queue_depth",
			Help: "Current number of frames waiting in the recognition queue",
		}),
		FramesPushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_frames_pushed_total",
			Help: "Total number of audio frames pushed into the queue",
		}),
		FramesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_frames_consumed_total",
			Help: "Total number of audio frames fed to the recognizer",
		}),

		// Recognition metrics
		PartialResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_partial_results_total",
			Help: "Total number of partial transcription results surfaced",
		}),
		FinalResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_final_results_total",
			Help: "Total number of final transcription results surfaced",
		}),
		FilteredResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_filtered_results_total",
			Help: "Total number of results dropped by the stoplist filter",
		}),
		EngineErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_engine_errors_total",
			Help: "Total number of recognizer engine errors",
		}),
		UtteranceLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_utterance_duration_seconds",
			Help:    "Duration of finalized utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~1 minute
		}),

		// Transport metrics
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_messages_sent_total",
			Help: "Total number of messages written to the channel",
		}),
		MessagesBuffered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_messages_buffered_total",
			Help: "Total number of messages held in the pre-open buffer",
		}),
		MessagesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_messages_rejected_total",
			Help: "Total number of messages rejected by a full pre-open buffer",
		}),
		MessagesDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_messages_dispatched_total",
			Help: "Total number of incoming messages dispatched to handlers",
		}),
		SendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_send_failures_total",
			Help: "Total number of channel write failures",
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companion_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "companion_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordDiscoveryAttempt increments the discovery attempts counter
func (m *Metrics) RecordDiscoveryAttempt() {
	m.DiscoveryAttempts.Inc()
}

// RecordDiscoverySuccess increments the discovery successes counter
func (m *Metrics) RecordDiscoverySuccess() {
	m.DiscoverySuccesses.Inc()
}

// RecordDiscoveryTimeout increments the discovery timeouts counter
func (m *Metrics) RecordDiscoveryTimeout() {
	m.DiscoveryTimeouts.Inc()
}

// RecordFallbackProbe records a fallback probe and its outcome
func (m *Metrics) RecordFallbackProbe(confirmed bool) {
	m.FallbackProbes.Inc()
	if confirmed {
		m.FallbackSuccesses.Inc()
	}
}

// SetQueueDepth sets the current frame queue depth
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordFramePushed increments the frames pushed counter
func (m *Metrics) RecordFramePushed() {
	m.FramesPushed.Inc()
}

// RecordFrameConsumed increments the frames consumed counter
func (m *Metrics) RecordFrameConsumed() {
	m.FramesConsumed.Inc()
}

// RecordResult records one surfaced transcription result
func (m *Metrics) RecordResult(final bool) {
	if final {
		m.FinalResults.Inc()
	} else {
		m.PartialResults.Inc()
	}
}

// RecordFilteredResult increments the stoplist filter counter
func (m *Metrics) RecordFilteredResult() {
	m.FilteredResults.Inc()
}

// RecordEngineError increments the engine errors counter
func (m *Metrics) RecordEngineError() {
	m.EngineErrors.Inc()
}

// RecordUtterance records the duration of a finalized utterance
func (m *Metrics) RecordUtterance(durationSeconds float64) {
	m.UtteranceLength.Observe(durationSeconds)
}

// RecordMessageSent increments the messages sent counter
func (m *Metrics) RecordMessageSent() {
	m.MessagesSent.Inc()
}

// RecordMessageBuffered increments the buffered messages counter
func (m *Metrics) RecordMessageBuffered() {
	m.MessagesBuffered.Inc()
}

// RecordMessageRejected increments the rejected messages counter
func (m *Metrics) RecordMessageRejected() {
	m.MessagesRejected.Inc()
}

// RecordMessageDispatched increments the dispatched messages counter
func (m *Metrics) RecordMessageDispatched() {
	m.MessagesDispatched.Inc()
}

// RecordSendFailure increments the send failures counter
func (m *Metrics) RecordSendFailure() {
	m.SendFailures.Inc()
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
