package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the sales call assistant
type Metrics struct {
	// Capture metrics
	ChunksCaptured prometheus.Counter
	ChunksDropped  prometheus.Counter
	SpeechChunks   prometheus.Counter
	SilenceChunks  prometheus.Counter
	ChunkQueueSize prometheus.Gauge
	ChunkRMS       prometheus.Histogram

	// UDP frame metrics
	FramesReceived   prometheus.Counter
	FramesLost       prometheus.Counter
	FrameParseErrors prometheus.Counter

	// Segment metrics
	SegmentsFlushed *prometheus.CounterVec
	SegmentDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	ShortTranscripts       prometheus.Counter

	// Conversation metrics
	ObjectionsDetected prometheus.Counter
	BuyingSignals      prometheus.Counter
	StageTransitions   prometheus.Counter

	// Suggestion metrics
	SuggestionRequests   prometheus.Counter
	SuggestionSuccesses  prometheus.Counter
	SuggestionFailures   prometheus.Counter
	SuggestionSuppressed prometheus.Counter
	SuggestionDuration   prometheus.Histogram
	SuggestionUrgency    prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		ChunksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_chunks_captured_total",
			Help: "Total number of audio chunks captured",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_chunks_dropped_total",
			Help: "Total number of chunks dropped due to a full queue",
		}),
		SpeechChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_speech_chunks_total",
			Help: "Total number of chunks classified as speech",
		}),
		SilenceChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_silence_chunks_total",
			Help: "Total number of chunks classified as silence",
		}),
		ChunkQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "salesagent_chunk_queue_size",
			Help: "Current number of chunks waiting in the queue",
		}),
		ChunkRMS: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesagent_chunk_rms",
			Help:    "RMS amplitude of captured chunks",
			Buckets: prometheus.LinearBuckets(0, 0.05, 11), // 0.0 to 0.5
		}),

		// UDP frame metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_udp_frames_received_total",
			Help: "Total number of UDP audio frames received",
		}),
		FramesLost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_udp_frames_lost_total",
			Help: "Total number of UDP audio frames lost in sequence gaps",
		}),
		FrameParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_udp_parse_errors_total",
			Help: "Total number of UDP frame parsing errors",
		}),

		// Segment metrics
		SegmentsFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "salesagent_segments_flushed_total",
			Help: "Total number of speech segments flushed, by reason",
		}, []string{"reason"}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesagent_segment_duration_seconds",
			Help:    "Duration of flushed speech segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesagent_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		ShortTranscripts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_short_transcripts_total",
			Help: "Total number of transcripts discarded as too short",
		}),

		// Conversation metrics
		ObjectionsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_objections_detected_total",
			Help: "Total number of customer objections detected",
		}),
		BuyingSignals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_buying_signals_total",
			Help: "Total number of buying signals detected",
		}),
		StageTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_stage_transitions_total",
			Help: "Total number of conversation stage transitions",
		}),

		// Suggestion metrics
		SuggestionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_suggestion_requests_total",
			Help: "Total number of suggestion generation requests",
		}),
		SuggestionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_suggestion_successes_total",
			Help: "Total number of suggestions generated",
		}),
		SuggestionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_suggestion_failures_total",
			Help: "Total number of failed suggestion requests",
		}),
		SuggestionSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salesagent_suggestions_suppressed_total",
			Help: "Total number of suggestions suppressed by the cooldown",
		}),
		SuggestionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesagent_suggestion_duration_seconds",
			Help:    "Duration of suggestion generation requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		SuggestionUrgency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesagent_suggestion_urgency",
			Help:    "Urgency score of generated suggestions",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 to 10
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "salesagent_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salesagent_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "salesagent_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordChunkCaptured records a captured chunk and its classification
func (m *Metrics) RecordChunkCaptured(isSpeech bool, rms float64) {
	m.ChunksCaptured.Inc()
	if isSpeech {
		m.SpeechChunks.Inc()
	} else {
		m.SilenceChunks.Inc()
	}
	m.ChunkRMS.Observe(rms)
}

// RecordChunkDropped increments the dropped chunks counter
func (m *Metrics) RecordChunkDropped() {
	m.ChunksDropped.Inc()
}

// SetChunkQueueSize sets the current chunk queue size
func (m *Metrics) SetChunkQueueSize(size int) {
	m.ChunkQueueSize.Set(float64(size))
}

// RecordFrameReceived increments the UDP frames received counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFramesLost adds to the UDP frames lost counter
func (m *Metrics) RecordFramesLost(count int) {
	m.FramesLost.Add(float64(count))
}

// RecordFrameParseError increments the UDP parse errors counter
func (m *Metrics) RecordFrameParseError() {
	m.FrameParseErrors.Inc()
}

// RecordSegmentFlushed records a flushed segment with its flush reason
func (m *Metrics) RecordSegmentFlushed(reason string, durationSeconds float64) {
	m.SegmentsFlushed.WithLabelValues(reason).Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordTranscriptionRequest increments the transcription requests counter
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

// RecordShortTranscript increments the short transcripts counter
func (m *Metrics) RecordShortTranscript() {
	m.ShortTranscripts.Inc()
}

// RecordConversationUpdate records detections from one transcript update
func (m *Metrics) RecordConversationUpdate(objections, signals int, stageChanged bool) {
	m.ObjectionsDetected.Add(float64(objections))
	m.BuyingSignals.Add(float64(signals))
	if stageChanged {
		m.StageTransitions.Inc()
	}
}

// RecordSuggestionRequest increments the suggestion requests counter
func (m *Metrics) RecordSuggestionRequest() {
	m.SuggestionRequests.Inc()
}

// RecordSuggestionSuccess records a generated suggestion
func (m *Metrics) RecordSuggestionSuccess(durationSeconds float64, urgency int) {
	m.SuggestionSuccesses.Inc()
	m.SuggestionDuration.Observe(durationSeconds)
	m.SuggestionUrgency.Observe(float64(urgency))
}

// RecordSuggestionFailure records a failed suggestion request
func (m *Metrics) RecordSuggestionFailure(durationSeconds float64) {
	m.SuggestionFailures.Inc()
	m.SuggestionDuration.Observe(durationSeconds)
}

// RecordSuggestionSuppressed increments the cooldown suppression counter
func (m *Metrics) RecordSuggestionSuppressed() {
	m.SuggestionSuppressed.Inc()
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
