package transcription

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
)

// Config contains transcription client configuration
type Config struct {
	APIKey        string
	BaseURL       string // optional endpoint override
	Model         string
	Language      string
	Temperature   float32
	MinTextLength int // transcripts shorter than this are discarded
}

// Result represents a usable transcript for one speech segment
type Result struct {
	Text       string        `json:"text"`
	Language   string        `json:"language"`
	Confidence float32       `json:"confidence"`
	AudioDur   time.Duration `json:"audio_duration"`
	Elapsed    time.Duration `json:"elapsed"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	ShortResults    uint64        `json:"short_results_discarded"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// Client transcribes speech segments through the OpenAI audio API. Each
// segment gets exactly one attempt: a failed request loses that segment
// and the pipeline moves on to the next one.
type Client struct {
	config  Config
	api     *openai.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	shortResults    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// NewClient creates a new transcription client
func NewClient(config Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Model == "" {
		config.Model = "whisper-1"
	}

	if config.MinTextLength <= 0 {
		config.MinTextLength = 3
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Client{
		config:  config,
		api:     openai.NewClientWithConfig(clientConfig),
		logger:  logger,
		metrics: m,
	}, nil
}

// Transcribe sends one speech segment for transcription. Returns nil with
// no error when the transcript is too short to be useful. The request is
// not bounded by a timeout; cancellation comes from ctx.
func (c *Client) Transcribe(ctx context.Context, segment *audio.Segment) (*Result, error) {
	wavData, err := audio.EncodeWAV(segment.Samples, segment.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment: %w", err)
	}

	startTime := time.Now()

	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
	c.metrics.RecordTranscriptionRequest()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:       c.config.Model,
		FilePath:    "segment.wav",
		Reader:      bytes.NewReader(wavData),
		Language:    c.config.Language,
		Temperature: c.config.Temperature,
	})

	elapsed := time.Since(startTime)

	if err != nil {
		c.mu.Lock()
		c.failedRequests++
		c.mu.Unlock()
		c.metrics.RecordTranscriptionFailure(elapsed.Seconds())

		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	c.mu.Lock()
	c.successRequests++
	c.mu.Unlock()
	c.metrics.RecordTranscriptionSuccess(elapsed.Seconds())
	c.updateAvgResponseTime(elapsed)

	text := strings.TrimSpace(resp.Text)
	if utf8.RuneCountInString(text) < c.config.MinTextLength {
		c.mu.Lock()
		c.shortResults++
		c.mu.Unlock()
		c.metrics.RecordShortTranscript()

		c.logger.Debug("Discarding short transcript",
			slog.String("text", text),
			slog.Float64("segment_duration_sec", segment.Duration.Seconds()),
		)
		return nil, nil
	}

	c.logger.Info("Segment transcribed",
		slog.String("text", text),
		slog.Float64("segment_duration_sec", segment.Duration.Seconds()),
		slog.Float64("elapsed_sec", elapsed.Seconds()),
	)

	return &Result{
		Text:       text,
		Language:   c.config.Language,
		Confidence: 0.9,
		AudioDur:   segment.Duration,
		Elapsed:    elapsed,
		Timestamp:  time.Now(),
	}, nil
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		ShortResults:    c.shortResults,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
	}
}
