package vad

import (
	"testing"
	"time"
)

func TestNewDetector(t *testing.T) {
	tests := []struct {
		name      string
		config    DetectorConfig
		expectErr bool
		wantName  string
	}{
		{
			name: "threshold detector",
			config: DetectorConfig{
				Type:             "threshold",
				SilenceThreshold: 0.01,
			},
			expectErr: false,
			wantName:  "threshold",
		},
		{
			name: "hangover detector",
			config: DetectorConfig{
				Type:               "hangover",
				SilenceThreshold:   0.01,
				MaxSilenceDuration: time.Second,
			},
			expectErr: false,
			wantName:  "hangover",
		},
		{
			name: "unknown type",
			config: DetectorConfig{
				Type:             "silero",
				SilenceThreshold: 0.01,
			},
			expectErr: true,
		},
		{
			name: "threshold too low",
			config: DetectorConfig{
				Type:             "threshold",
				SilenceThreshold: -0.1,
			},
			expectErr: true,
		},
		{
			name: "threshold too high",
			config: DetectorConfig{
				Type:             "threshold",
				SilenceThreshold: 1.1,
			},
			expectErr: true,
		},
		{
			name: "hangover without max silence",
			config: DetectorConfig{
				Type:             "hangover",
				SilenceThreshold: 0.01,
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector, err := NewDetector(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if detector.Name() != tt.wantName {
				t.Errorf("Expected detector name %s, got %s", tt.wantName, detector.Name())
			}
		})
	}
}

func TestThresholdDetector(t *testing.T) {
	detector := NewThresholdDetector(0.01)
	now := time.Now()

	tests := []struct {
		name      string
		amplitude float64
		expected  bool
	}{
		{"loud chunk", 0.05, true},
		{"quiet chunk", 0.005, false},
		{"exactly at threshold", 0.01, false},
		{"silence", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detector.IsSpeech(tt.amplitude, now)
			if got != tt.expected {
				t.Errorf("IsSpeech(%.3f) = %v, expected %v", tt.amplitude, got, tt.expected)
			}
		})
	}
}

func TestThresholdDetectorStateless(t *testing.T) {
	detector := NewThresholdDetector(0.01)
	now := time.Now()

	// A loud chunk must not influence the next quiet one
	if !detector.IsSpeech(0.5, now) {
		t.Error("Expected loud chunk to be speech")
	}
	if detector.IsSpeech(0.001, now.Add(100*time.Millisecond)) {
		t.Error("Expected quiet chunk to be silence regardless of history")
	}
}

func TestHangoverDetectorBridgesShortPauses(t *testing.T) {
	detector := NewHangoverDetector(0.01, time.Second)
	start := time.Now()

	if !detector.IsSpeech(0.05, start) {
		t.Fatal("Expected loud chunk to start an utterance")
	}

	// Quiet chunks within the max silence window stay speech
	if !detector.IsSpeech(0.001, start.Add(500*time.Millisecond)) {
		t.Error("Expected short pause to be bridged")
	}
	if !detector.IsSpeech(0.001, start.Add(900*time.Millisecond)) {
		t.Error("Expected pause below max silence to be bridged")
	}

	// Once the pause exceeds the limit the utterance ends
	if detector.IsSpeech(0.001, start.Add(1500*time.Millisecond)) {
		t.Error("Expected long pause to end the utterance")
	}
	if detector.IsSpeech(0.001, start.Add(1600*time.Millisecond)) {
		t.Error("Expected silence to stay silence after the utterance ended")
	}

	// Speech resumes with the next loud chunk
	if !detector.IsSpeech(0.05, start.Add(2*time.Second)) {
		t.Error("Expected loud chunk to start a new utterance")
	}
}

func TestHangoverDetectorQuietStart(t *testing.T) {
	detector := NewHangoverDetector(0.01, time.Second)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if detector.IsSpeech(0.001, now.Add(time.Duration(i)*100*time.Millisecond)) {
			t.Fatalf("Quiet chunk %d classified as speech before any utterance", i)
		}
	}
}

func TestHangoverDetectorReset(t *testing.T) {
	detector := NewHangoverDetector(0.01, time.Minute)
	now := time.Now()

	detector.IsSpeech(0.05, now)
	detector.Reset()

	if detector.IsSpeech(0.001, now.Add(time.Millisecond)) {
		t.Error("Expected no hangover after reset")
	}
}
