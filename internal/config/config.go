package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	UDP           UDPConfig           `yaml:"udp"`
	Detector      DetectorConfig      `yaml:"detector"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Suggestion    SuggestionConfig    `yaml:"suggestion"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains capture and chunking parameters
type AudioConfig struct {
	Source        string  `yaml:"source"`         // "wav" or "udp"
	SampleRate    int     `yaml:"sample_rate"`    // Hz
	Channels      int     `yaml:"channels"`       // mono pipeline
	ChunkDuration float64 `yaml:"chunk_duration"` // seconds, nominal chunk length
	BlockSize     int     `yaml:"block_size"`     // frames per delivered block (wav source)
	WAVPath       string  `yaml:"wav_path"`       // input file for the wav source
	QueueCapacity int     `yaml:"queue_capacity"` // bounded chunk queue size
}

// UDPConfig contains the UDP capture source configuration
type UDPConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"` // socket read buffer, bytes
}

// DetectorConfig selects and tunes the speech boundary detector
type DetectorConfig struct {
	Type               string  `yaml:"type"`                 // "threshold" or "hangover"
	SilenceThreshold   float64 `yaml:"silence_threshold"`    // RMS amplitude gate
	MaxSilenceDuration float64 `yaml:"max_silence_duration"` // seconds, hangover exit
}

// SegmenterConfig contains speech segment accumulation parameters
type SegmenterConfig struct {
	MinDuration         float64 `yaml:"min_duration"`          // seconds
	MaxDuration         float64 `yaml:"max_duration"`          // seconds, hard cap
	MinChunks           int     `yaml:"min_chunks"`            // count must exceed this for a size flush
	SilenceTimeout      float64 `yaml:"silence_timeout"`       // seconds since last flush
	PollInterval        float64 `yaml:"poll_interval"`         // seconds, queue bounded wait
	ShutdownJoinTimeout int     `yaml:"shutdown_join_timeout"` // seconds
}

// TranscriptionConfig contains the speech-to-text API configuration
type TranscriptionConfig struct {
	APIKey        string  `yaml:"api_key"` // empty means take OPENAI_API_KEY from env
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Language      string  `yaml:"language"`
	Temperature   float64 `yaml:"temperature"`
	MinTextLength int     `yaml:"min_text_length"` // shorter results are discarded
}

// SuggestionConfig contains the completion API and trigger configuration
type SuggestionConfig struct {
	APIKey       string  `yaml:"api_key"` // empty means take OPENAI_API_KEY from env
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	MinInterval  float64 `yaml:"min_interval"` // seconds between delivered suggestions
	TopK         int     `yaml:"top_k"`        // knowledge snippets per query
	HistoryLimit int     `yaml:"history_limit"`
	ReportDir    string  `yaml:"report_dir"` // empty disables session report export
}

// KnowledgeConfig points at the prebuilt retrieval index
type KnowledgeConfig struct {
	IndexPath string `yaml:"index_path"` // empty disables retrieval
}

// HTTPConfig contains the monitoring HTTP server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"` // "stdout", "stderr" or "file"
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if c.Audio.Source == "udp" {
		if err := c.UDP.Validate(); err != nil {
			return fmt.Errorf("udp config: %w", err)
		}
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}

	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Suggestion.Validate(); err != nil {
		return fmt.Errorf("suggestion config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Source != "wav" && a.Source != "udp" {
		return fmt.Errorf("source must be 'wav' or 'udp', got '%s'", a.Source)
	}

	if a.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", a.ChunkDuration)
	}

	if a.Source == "wav" {
		if a.WAVPath == "" {
			return fmt.Errorf("wav_path cannot be empty when source is 'wav'")
		}
		if a.BlockSize < 64 {
			return fmt.Errorf("block_size must be at least 64 frames, got %d", a.BlockSize)
		}
	}

	if a.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", a.QueueCapacity)
	}

	return nil
}

// Validate validates UDP source configuration
func (u *UDPConfig) Validate() error {
	if u.Port < 1 || u.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", u.Port)
	}

	if u.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if u.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", u.BufferSize)
	}

	return nil
}

// Validate validates detector configuration
func (d *DetectorConfig) Validate() error {
	if d.Type != "threshold" && d.Type != "hangover" {
		return fmt.Errorf("type must be 'threshold' or 'hangover', got '%s'", d.Type)
	}

	if d.SilenceThreshold <= 0 || d.SilenceThreshold >= 1 {
		return fmt.Errorf("silence_threshold must be between 0 and 1 (exclusive), got %f", d.SilenceThreshold)
	}

	if d.Type == "hangover" && d.MaxSilenceDuration <= 0 {
		return fmt.Errorf("max_silence_duration must be positive for the hangover detector, got %f", d.MaxSilenceDuration)
	}

	return nil
}

// Validate validates segmenter configuration
func (s *SegmenterConfig) Validate() error {
	if s.MinDuration <= 0 {
		return fmt.Errorf("min_duration must be positive, got %f", s.MinDuration)
	}

	if s.MaxDuration <= s.MinDuration {
		return fmt.Errorf("max_duration (%f) must be greater than min_duration (%f)",
			s.MaxDuration, s.MinDuration)
	}

	if s.MinChunks < 1 {
		return fmt.Errorf("min_chunks must be at least 1, got %d", s.MinChunks)
	}

	if s.SilenceTimeout <= 0 {
		return fmt.Errorf("silence_timeout must be positive, got %f", s.SilenceTimeout)
	}

	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", s.PollInterval)
	}

	if s.ShutdownJoinTimeout < 1 {
		return fmt.Errorf("shutdown_join_timeout must be at least 1 second, got %d", s.ShutdownJoinTimeout)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if t.Temperature < 0 || t.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", t.Temperature)
	}

	if t.MinTextLength < 0 {
		return fmt.Errorf("min_text_length cannot be negative, got %d", t.MinTextLength)
	}

	return nil
}

// Validate validates suggestion configuration
func (s *SuggestionConfig) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", s.Temperature)
	}

	if s.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", s.MaxTokens)
	}

	if s.MinInterval < 0 {
		return fmt.Errorf("min_interval cannot be negative, got %f", s.MinInterval)
	}

	if s.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", s.TopK)
	}

	if s.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", s.HistoryLimit)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[l.Output] {
		return fmt.Errorf("output must be one of [stdout, stderr, file], got '%s'", l.Output)
	}

	if l.Output == "file" && l.FilePath == "" {
		return fmt.Errorf("file_path cannot be empty when output is 'file'")
	}

	return nil
}

// GetChunkDuration returns the nominal chunk duration as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// FramesPerChunk returns the number of samples in a nominal chunk
func (a *AudioConfig) FramesPerChunk() int {
	return int(float64(a.SampleRate) * a.ChunkDuration)
}

// GetMaxSilenceDuration returns the hangover exit window as a time.Duration
func (d *DetectorConfig) GetMaxSilenceDuration() time.Duration {
	return time.Duration(d.MaxSilenceDuration * float64(time.Second))
}

// GetMinDuration returns the minimum segment duration as a time.Duration
func (s *SegmenterConfig) GetMinDuration() time.Duration {
	return time.Duration(s.MinDuration * float64(time.Second))
}

// GetMaxDuration returns the maximum segment duration as a time.Duration
func (s *SegmenterConfig) GetMaxDuration() time.Duration {
	return time.Duration(s.MaxDuration * float64(time.Second))
}

// GetSilenceTimeout returns the silence flush fallback window as a time.Duration
func (s *SegmenterConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(s.SilenceTimeout * float64(time.Second))
}

// GetPollInterval returns the queue bounded-wait interval as a time.Duration
func (s *SegmenterConfig) GetPollInterval() time.Duration {
	return time.Duration(s.PollInterval * float64(time.Second))
}

// GetShutdownJoinTimeout returns the worker join timeout as a time.Duration
func (s *SegmenterConfig) GetShutdownJoinTimeout() time.Duration {
	return time.Duration(s.ShutdownJoinTimeout) * time.Second
}

// GetMinInterval returns the suggestion cooldown as a time.Duration
func (s *SuggestionConfig) GetMinInterval() time.Duration {
	return time.Duration(s.MinInterval * float64(time.Second))
}
