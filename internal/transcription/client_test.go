package transcription

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
)

// Prometheus collectors register on the default registry, so the test
// binary shares a single Metrics instance.
var testMetrics = metrics.NewMetrics()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSegment(durationSec float64, sampleRate int) *audio.Segment {
	numSamples := int(durationSec * float64(sampleRate))
	return &audio.Segment{
		Samples:    make([]float32, numSamples),
		SampleRate: sampleRate,
		Start:      time.Now(),
		Duration:   time.Duration(durationSec * float64(time.Second)),
		Chunks:     1,
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "whisper-1",
		Language:    "pt",
		Temperature: 0.1,
	}, testLogger(), testMetrics)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		expectErr bool
	}{
		{
			name:      "valid config",
			config:    Config{APIKey: "key"},
			expectErr: false,
		},
		{
			name:      "empty API key",
			config:    Config{},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config, testLogger(), testMetrics)

			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			if client.config.Model != "whisper-1" {
				t.Errorf("Expected default model whisper-1, got %s", client.config.Model)
			}
			if client.config.MinTextLength != 3 {
				t.Errorf("Expected default min text length 3, got %d", client.config.MinTextLength)
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("Unexpected request path: %s", r.URL.Path)
		}

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("Expected model whisper-1, got %s", model)
		}
		if lang := r.FormValue("language"); lang != "pt" {
			t.Errorf("Expected language pt, got %s", lang)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing audio file in request: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Filename != "segment.wav" {
			t.Errorf("Expected filename segment.wav, got %s", header.Filename)
		}

		data, _ := io.ReadAll(file)
		if err := audio.ValidateWAV(data); err != nil {
			t.Errorf("Uploaded audio is not valid WAV: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  Está muito caro para nós.  "}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1")

	result, err := client.Transcribe(context.Background(), testSegment(1.5, 16000))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result, got nil")
	}

	if result.Text != "Está muito caro para nós." {
		t.Errorf("Expected trimmed transcript, got %q", result.Text)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", result.Confidence)
	}
	if result.AudioDur != 1500*time.Millisecond {
		t.Errorf("Expected audio duration 1.5s, got %v", result.AudioDur)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Expected 1 total / 1 success, got %d / %d", stats.TotalRequests, stats.SuccessRequests)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("Expected 100%% success rate, got %f", stats.SuccessRate)
	}
}

func TestTranscribeShortText(t *testing.T) {
	tests := []struct {
		name     string
		response string
		discard  bool
	}{
		{
			name:     "two letters discarded",
			response: `{"text": " ok "}`,
			discard:  true,
		},
		{
			name:     "empty text discarded",
			response: `{"text": ""}`,
			discard:  true,
		},
		{
			name:     "accented word counted by runes",
			response: `{"text": "até"}`,
			discard:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL+"/v1")

			result, err := client.Transcribe(context.Background(), testSegment(1.0, 16000))
			if err != nil {
				t.Fatalf("Transcribe failed: %v", err)
			}

			if tt.discard && result != nil {
				t.Errorf("Expected short transcript to be discarded, got %q", result.Text)
			}
			if !tt.discard && result == nil {
				t.Error("Expected a result, got nil")
			}

			stats := client.GetStats()
			if tt.discard && stats.ShortResults == 0 {
				t.Error("Expected short result to be counted")
			}
		})
	}
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "upstream unavailable", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1")

	result, err := client.Transcribe(context.Background(), testSegment(1.0, 16000))
	if err == nil {
		t.Fatal("Expected error from failing server")
	}
	if result != nil {
		t.Errorf("Expected nil result on error, got %+v", result)
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}
