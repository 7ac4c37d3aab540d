package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/capture"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/config"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/conversation"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/knowledge"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/pipeline"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/server"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/suggestion"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/transcription"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "sales-agent"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	buildIndexDir := flag.String("build-index", "", "Build the knowledge index from a toolkit directory and exit")
	indexOut := flag.String("index-out", "data/knowledge_index.json", "Output path for -build-index")
	flag.Parse()

	// A .env file is optional; it supplies API keys the yaml leaves empty
	_ = godotenv.Load()

	if *buildIndexDir != "" {
		buildKnowledgeIndex(*buildIndexDir, *indexOut)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// API keys missing from the yaml come from the environment
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if cfg.Transcription.APIKey == "" {
			cfg.Transcription.APIKey = apiKey
		}
		if cfg.Suggestion.APIKey == "" {
			cfg.Suggestion.APIKey = apiKey
		}
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("audio_source", cfg.Audio.Source),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.Int("queue_capacity", cfg.Audio.QueueCapacity),
		slog.String("detector", cfg.Detector.Type),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.String("suggestion_model", cfg.Suggestion.Model),
		slog.String("knowledge_index", cfg.Knowledge.IndexPath),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Load the knowledge index. A missing index degrades suggestions, it
	// does not prevent startup.
	var index *knowledge.FileIndex
	if cfg.Knowledge.IndexPath != "" {
		index, err = knowledge.LoadIndex(cfg.Knowledge.IndexPath)
		if err != nil {
			logger.Warn("Knowledge index unavailable, running without retrieval",
				slog.String("path", cfg.Knowledge.IndexPath),
				slog.String("error", err.Error()),
			)
			index = knowledge.NewFileIndex(nil, time.Now())
		} else {
			logger.Info("Knowledge index loaded",
				slog.String("path", cfg.Knowledge.IndexPath),
				slog.Int("snippets", index.Size()),
			)
		}
	} else {
		logger.Info("Knowledge retrieval disabled, no index path configured")
		index = knowledge.NewFileIndex(nil, time.Now())
	}

	// Initialize transcription client
	transcriber, err := transcription.NewClient(transcription.Config{
		APIKey:        cfg.Transcription.APIKey,
		BaseURL:       cfg.Transcription.BaseURL,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Temperature:   float32(cfg.Transcription.Temperature),
		MinTextLength: cfg.Transcription.MinTextLength,
	}, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize suggestion engine
	engine, err := suggestion.NewEngine(suggestion.Config{
		APIKey:       cfg.Suggestion.APIKey,
		BaseURL:      cfg.Suggestion.BaseURL,
		Model:        cfg.Suggestion.Model,
		Temperature:  float32(cfg.Suggestion.Temperature),
		MaxTokens:    cfg.Suggestion.MaxTokens,
		MinInterval:  cfg.Suggestion.GetMinInterval(),
		TopK:         cfg.Suggestion.TopK,
		HistoryLimit: cfg.Suggestion.HistoryLimit,
	}, index, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create suggestion engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tracker := conversation.NewTracker(logger, appMetrics)

	// Audio source selected by configuration
	var source capture.SampleSource
	switch cfg.Audio.Source {
	case "udp":
		source = capture.NewUDPSource(&cfg.UDP, logger, appMetrics)
	default:
		source = capture.NewWAVSource(cfg.Audio.WAVPath, cfg.Audio.SampleRate, cfg.Audio.BlockSize, logger)
	}

	detector, err := vad.NewDetector(vad.DetectorConfig{
		Type:               cfg.Detector.Type,
		SilenceThreshold:   cfg.Detector.SilenceThreshold,
		MaxSilenceDuration: cfg.Detector.GetMaxSilenceDuration(),
	})
	if err != nil {
		logger.Error("Failed to create speech detector", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize capture stage
	stage := capture.NewStage(capture.StageConfig{
		SampleRate:     cfg.Audio.SampleRate,
		FramesPerChunk: cfg.Audio.FramesPerChunk(),
		QueueCapacity:  cfg.Audio.QueueCapacity,
	}, source, detector, logger, appMetrics)

	// Suggestions go to the console, formatted for the seller
	deliver := func(s *suggestion.Suggestion) {
		fmt.Println(suggestion.Format(s))
	}

	// Initialize processing pipeline
	pipe := pipeline.NewPipeline(pipeline.Config{
		Segmenter: audio.SegmenterConfig{
			MinDuration:    cfg.Segmenter.GetMinDuration(),
			MaxDuration:    cfg.Segmenter.GetMaxDuration(),
			MinChunks:      cfg.Segmenter.MinChunks,
			SilenceTimeout: cfg.Segmenter.GetSilenceTimeout(),
			SampleRate:     cfg.Audio.SampleRate,
		},
		PollInterval: cfg.Segmenter.GetPollInterval(),
		JoinTimeout:  cfg.Segmenter.GetShutdownJoinTimeout(),
	}, stage.Chunks(), transcriber, tracker, engine, deliver, logger, appMetrics)

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, stage, pipe, transcriber, engine, index, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start the consumer before the producer so no chunk waits
	if err := pipe.Start(); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start audio capture
	if err := stage.Start(); err != nil {
		logger.Error("Failed to start audio capture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("session_id", pipe.SessionID()),
	)

	// Wait for a shutdown signal, or for the input stream to end (a replayed
	// file is finite; live capture never closes on its own)
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-pipe.Done():
		logger.Info("Input stream finished")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop capture (closes the chunk queue once the source drains)
	if err := stage.Stop(); err != nil {
		logger.Error("Error stopping audio capture", slog.String("error", err.Error()))
	}

	// Stop pipeline (bounded wait for the worker to finish in-flight work)
	if err := pipe.Stop(); err != nil {
		logger.Error("Pipeline worker leaked", slog.String("error", err.Error()))
	}

	// Export the session report (if configured)
	if cfg.Suggestion.ReportDir != "" {
		if _, err := engine.ExportReport(cfg.Suggestion.ReportDir, pipe.SessionID(), pipe.State(), time.Now()); err != nil {
			logger.Error("Failed to export session report", slog.String("error", err.Error()))
		}
	}

	// Get final statistics
	stats := pipe.GetStats()
	captureStats := stage.GetStats()
	logger.Info("Final session statistics",
		slog.String("session_id", stats.SessionID),
		slog.Uint64("chunks_delivered", captureStats.ChunksDelivered),
		slog.Uint64("chunks_dropped", captureStats.ChunksDropped),
		slog.Uint64("segments_processed", stats.SegmentsProcessed),
		slog.Uint64("transcripts_accepted", stats.TranscriptsAccepted),
		slog.Uint64("suggestions_delivered", stats.SuggestionsDelivered),
	)

	logger.Info("Service stopped")
}

// buildKnowledgeIndex scans a sales toolkit directory, writes the retrieval
// index and exits. Runs before config load so it needs no configuration file.
func buildKnowledgeIndex(toolkitDir, outPath string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	snippets, err := knowledge.BuildIndex(toolkitDir)
	if err != nil {
		logger.Error("Failed to build knowledge index", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := knowledge.SaveIndex(outPath, snippets); err != nil {
		logger.Error("Failed to save knowledge index", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Knowledge index built",
		slog.String("toolkit", toolkitDir),
		slog.String("path", outPath),
		slog.Int("snippets", len(snippets)),
	)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		// Rotating log file so long advisory sessions do not fill the disk
		output = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	default:
		output = os.Stdout
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
