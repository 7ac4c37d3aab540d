package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Audio: AudioConfig{
			Source:        "wav",
			SampleRate:    16000,
			Channels:      1,
			ChunkDuration: 2.0,
			BlockSize:     1024,
			WAVPath:       "./testdata/call.wav",
			QueueCapacity: 10,
		},
		UDP: UDPConfig{
			Port:        8970,
			BindAddress: "0.0.0.0",
			BufferSize:  65536,
		},
		Detector: DetectorConfig{
			Type:               "threshold",
			SilenceThreshold:   0.01,
			MaxSilenceDuration: 1.0,
		},
		Segmenter: SegmenterConfig{
			MinDuration:         1.0,
			MaxDuration:         10.0,
			MinChunks:           5,
			SilenceTimeout:      2.0,
			PollInterval:        0.5,
			ShutdownJoinTimeout: 5,
		},
		Transcription: TranscriptionConfig{
			Model:         "whisper-1",
			Language:      "pt",
			Temperature:   0.1,
			MinTextLength: 2,
		},
		Suggestion: SuggestionConfig{
			Model:        "gpt-4o-mini",
			Temperature:  0.3,
			MaxTokens:    200,
			MinInterval:  5.0,
			TopK:         3,
			HistoryLimit: 20,
		},
		Knowledge: KnowledgeConfig{
			IndexPath: "./data/knowledge_index.json",
		},
		HTTP: HTTPConfig{
			Port:    8971,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "invalid audio source",
			mutate: func(c *Config) {
				c.Audio.Source = "pulse"
			},
			expectError: true,
			errorMsg:    "source must be 'wav' or 'udp'",
		},
		{
			name: "stereo capture rejected",
			mutate: func(c *Config) {
				c.Audio.Channels = 2
			},
			expectError: true,
			errorMsg:    "channels must be 1",
		},
		{
			name: "zero queue capacity",
			mutate: func(c *Config) {
				c.Audio.QueueCapacity = 0
			},
			expectError: true,
			errorMsg:    "queue_capacity must be at least 1",
		},
		{
			name: "udp source validates udp section",
			mutate: func(c *Config) {
				c.Audio.Source = "udp"
				c.UDP.Port = 70000
			},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name: "wav source skips udp section",
			mutate: func(c *Config) {
				c.Audio.Source = "wav"
				c.UDP.Port = 0
			},
			expectError: false,
		},
		{
			name: "unknown detector type",
			mutate: func(c *Config) {
				c.Detector.Type = "silero"
			},
			expectError: true,
			errorMsg:    "type must be 'threshold' or 'hangover'",
		},
		{
			name: "silence threshold out of range",
			mutate: func(c *Config) {
				c.Detector.SilenceThreshold = 1.5
			},
			expectError: true,
			errorMsg:    "silence_threshold must be between 0 and 1",
		},
		{
			name: "segment min greater than max",
			mutate: func(c *Config) {
				c.Segmenter.MinDuration = 30.0
				c.Segmenter.MaxDuration = 1.0
			},
			expectError: true,
			errorMsg:    "max_duration",
		},
		{
			name: "empty transcription model",
			mutate: func(c *Config) {
				c.Transcription.Model = ""
			},
			expectError: true,
			errorMsg:    "model cannot be empty",
		},
		{
			name: "suggestion top_k zero",
			mutate: func(c *Config) {
				c.Suggestion.TopK = 0
			},
			expectError: true,
			errorMsg:    "top_k must be at least 1",
		},
		{
			name: "file output requires path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.FilePath = ""
			},
			expectError: true,
			errorMsg:    "file_path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
audio:
  source: "wav"
  sample_rate: 16000
  channels: 1
  chunk_duration: 2.0
  block_size: 1024
  wav_path: "./testdata/call.wav"
  queue_capacity: 10
detector:
  type: "threshold"
  silence_threshold: 0.01
  max_silence_duration: 1.0
segmenter:
  min_duration: 1.0
  max_duration: 10.0
  min_chunks: 5
  silence_timeout: 2.0
  poll_interval: 0.5
  shutdown_join_timeout: 5
transcription:
  model: "whisper-1"
  language: "pt"
  temperature: 0.1
  min_text_length: 2
suggestion:
  model: "gpt-4o-mini"
  temperature: 0.3
  max_tokens: 200
  min_interval: 5.0
  top_k: 3
  history_limit: 20
knowledge:
  index_path: "./data/knowledge_index.json"
http:
  enabled: false
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
audio:
  source: "wav"
  queue_capacity: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
audio:
  source: "wav"
  # missing everything else
`,
			expectError: true,
			errorMsg:    "sample_rate must be at least 8000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	audio := AudioConfig{
		SampleRate:    16000,
		ChunkDuration: 2.0,
	}

	if audio.GetChunkDuration() != 2*time.Second {
		t.Errorf("Expected 2 seconds, got %v", audio.GetChunkDuration())
	}

	if audio.FramesPerChunk() != 32000 {
		t.Errorf("Expected 32000 frames per chunk, got %d", audio.FramesPerChunk())
	}

	segmenter := SegmenterConfig{
		MinDuration:         1.5,
		MaxDuration:         10.0,
		SilenceTimeout:      2.0,
		PollInterval:        0.5,
		ShutdownJoinTimeout: 5,
	}

	if segmenter.GetMinDuration() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5 seconds, got %v", segmenter.GetMinDuration())
	}

	if segmenter.GetMaxDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", segmenter.GetMaxDuration())
	}

	if segmenter.GetSilenceTimeout() != 2*time.Second {
		t.Errorf("Expected 2 seconds, got %v", segmenter.GetSilenceTimeout())
	}

	if segmenter.GetPollInterval() != 500*time.Millisecond {
		t.Errorf("Expected 0.5 seconds, got %v", segmenter.GetPollInterval())
	}

	if segmenter.GetShutdownJoinTimeout() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", segmenter.GetShutdownJoinTimeout())
	}

	detector := DetectorConfig{
		MaxSilenceDuration: 1.0,
	}

	if detector.GetMaxSilenceDuration() != time.Second {
		t.Errorf("Expected 1 second, got %v", detector.GetMaxSilenceDuration())
	}

	suggestion := SuggestionConfig{
		MinInterval: 5.0,
	}

	if suggestion.GetMinInterval() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", suggestion.GetMinInterval())
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name: "valid json to stdout",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			valid: true,
		},
		{
			name: "valid text to stderr",
			config: LoggingConfig{
				Level:  "debug",
				Format: "text",
				Output: "stderr",
			},
			valid: true,
		},
		{
			name: "valid rotating file",
			config: LoggingConfig{
				Level:      "info",
				Format:     "json",
				Output:     "file",
				FilePath:   "logs/agent.log",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
			valid: true,
		},
		{
			name: "invalid log level",
			config: LoggingConfig{
				Level:  "trace",
				Format: "json",
				Output: "stdout",
			},
			valid: false,
		},
		{
			name: "invalid format",
			config: LoggingConfig{
				Level:  "info",
				Format: "xml",
				Output: "stdout",
			},
			valid: false,
		},
		{
			name: "invalid output",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "syslog",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > len(substr) && findSubstring(s, substr)))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
