package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/capture"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/config"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/knowledge"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/pipeline"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/suggestion"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/transcription"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server      *http.Server
	logger      *slog.Logger
	config      *config.Config
	stage       *capture.Stage
	pipe        *pipeline.Pipeline
	transcriber *transcription.Client
	engine      *suggestion.Engine
	index       *knowledge.FileIndex
	metrics     *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. index may be nil when
// knowledge retrieval is disabled.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	stage *capture.Stage, pipe *pipeline.Pipeline, transcriber *transcription.Client,
	engine *suggestion.Engine, index *knowledge.FileIndex, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		stage:       stage,
		pipe:        pipe,
		transcriber: transcriber,
		engine:      engine,
		index:       index,
		metrics:     m,
		startTime:   time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Session report endpoint
	mux.HandleFunc("/report", h.withMetrics("/report", h.handleReport))

	// Conversation reset endpoint
	mux.HandleFunc("/reset", h.withMetrics("/reset", h.handleReset))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	captureStats := h.stage.GetStats()
	pipeStats := h.pipe.GetStats()
	transcriptionStats := h.transcriber.GetStats()
	engineStats := h.engine.GetStats()

	status := "healthy"
	workerStatus := "running"
	if pipeStats.WorkerLeaked {
		status = "degraded"
		workerStatus = "leaked"
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "sales-agent",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"capture": map[string]interface{}{
				"status":           "running",
				"source":           captureStats.Source,
				"chunks_delivered": captureStats.ChunksDelivered,
				"chunks_dropped":   captureStats.ChunksDropped,
				"queue_size":       captureStats.QueueSize,
			},
			"pipeline": map[string]interface{}{
				"status":             workerStatus,
				"session_id":         pipeStats.SessionID,
				"segments_processed": pipeStats.SegmentsProcessed,
			},
			"transcription": map[string]interface{}{
				"status":         "running",
				"total_requests": transcriptionStats.TotalRequests,
				"success_rate":   transcriptionStats.SuccessRate,
			},
			"suggestion": map[string]interface{}{
				"status":                "running",
				"suggestions_generated": engineStats.Generated,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":        uptime.String(),
		"timestamp":     time.Now().UTC(),
		"capture":       h.stage.GetStats(),
		"segmenter":     h.pipe.SegmenterStats(),
		"pipeline":      h.pipe.GetStats(),
		"transcription": h.transcriber.GetStats(),
		"conversation":  h.pipe.State(),
		"suggestion":    h.engine.GetStats(),
	}
	if h.index != nil {
		stats["knowledge"] = h.index.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"source":         h.config.Audio.Source,
			"sample_rate":    h.config.Audio.SampleRate,
			"channels":       h.config.Audio.Channels,
			"chunk_duration": h.config.Audio.ChunkDuration,
			"block_size":     h.config.Audio.BlockSize,
			"wav_path":       h.config.Audio.WAVPath,
			"queue_capacity": h.config.Audio.QueueCapacity,
		},
		"udp": map[string]interface{}{
			"port":         h.config.UDP.Port,
			"bind_address": h.config.UDP.BindAddress,
			"buffer_size":  h.config.UDP.BufferSize,
		},
		"detector": map[string]interface{}{
			"type":                 h.config.Detector.Type,
			"silence_threshold":    h.config.Detector.SilenceThreshold,
			"max_silence_duration": h.config.Detector.MaxSilenceDuration,
		},
		"segmenter": map[string]interface{}{
			"min_duration":          h.config.Segmenter.MinDuration,
			"max_duration":          h.config.Segmenter.MaxDuration,
			"min_chunks":            h.config.Segmenter.MinChunks,
			"silence_timeout":       h.config.Segmenter.SilenceTimeout,
			"poll_interval":         h.config.Segmenter.PollInterval,
			"shutdown_join_timeout": h.config.Segmenter.ShutdownJoinTimeout,
		},
		"transcription": map[string]interface{}{
			"base_url":        h.config.Transcription.BaseURL,
			"model":           h.config.Transcription.Model,
			"language":        h.config.Transcription.Language,
			"temperature":     h.config.Transcription.Temperature,
			"min_text_length": h.config.Transcription.MinTextLength,
			// Note: API key is intentionally omitted for security
		},
		"suggestion": map[string]interface{}{
			"base_url":      h.config.Suggestion.BaseURL,
			"model":         h.config.Suggestion.Model,
			"temperature":   h.config.Suggestion.Temperature,
			"max_tokens":    h.config.Suggestion.MaxTokens,
			"min_interval":  h.config.Suggestion.MinInterval,
			"top_k":         h.config.Suggestion.TopK,
			"history_limit": h.config.Suggestion.HistoryLimit,
			"report_dir":    h.config.Suggestion.ReportDir,
			// Note: API key is intentionally omitted for security
		},
		"knowledge": map[string]interface{}{
			"index_path": h.config.Knowledge.IndexPath,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleReport implements the /report endpoint
func (h *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.engine.BuildReport(h.pipe.SessionID(), h.pipe.State(), time.Now())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// handleReset implements the /reset endpoint
func (h *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.pipe.Reset()

	h.logger.Info("Conversation reset via HTTP",
		slog.String("remote", r.RemoteAddr),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "reset",
		"session_id": h.pipe.SessionID(),
		"timestamp":  time.Now().UTC(),
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Sales Agent",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /health":  "Service health check",
			"GET /stats":   "Get service statistics",
			"GET /config":  "Get service configuration",
			"GET /report":  "Get the current session report",
			"POST /reset":  "Reset the conversation state",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
