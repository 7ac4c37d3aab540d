package vad

import (
	"fmt"
	"time"
)

// Detector classifies audio chunks as speech or silence from their RMS
// amplitude. Implementations may keep state across calls; Reset clears it.
type Detector interface {
	Name() string
	IsSpeech(amplitude float64, at time.Time) bool
	Reset()
}

// DetectorConfig contains configuration for building a detector
type DetectorConfig struct {
	Type               string
	SilenceThreshold   float64
	MaxSilenceDuration time.Duration
}

// NewDetector creates the detector selected by config
func NewDetector(config DetectorConfig) (Detector, error) {
	if config.SilenceThreshold < 0 || config.SilenceThreshold > 1 {
		return nil, fmt.Errorf("silence threshold must be between 0 and 1, got %f", config.SilenceThreshold)
	}

	switch config.Type {
	case "threshold":
		return NewThresholdDetector(config.SilenceThreshold), nil
	case "hangover":
		if config.MaxSilenceDuration <= 0 {
			return nil, fmt.Errorf("max silence duration must be positive, got %v", config.MaxSilenceDuration)
		}
		return NewHangoverDetector(config.SilenceThreshold, config.MaxSilenceDuration), nil
	default:
		return nil, fmt.Errorf("unknown detector type: %s (must be 'threshold' or 'hangover')", config.Type)
	}
}

// ThresholdDetector classifies each chunk independently: speech when the
// amplitude exceeds the silence threshold.
type ThresholdDetector struct {
	threshold float64
}

// NewThresholdDetector creates a stateless amplitude threshold detector
func NewThresholdDetector(threshold float64) *ThresholdDetector {
	return &ThresholdDetector{threshold: threshold}
}

func (d *ThresholdDetector) Name() string { return "threshold" }

// IsSpeech returns true when amplitude exceeds the threshold
func (d *ThresholdDetector) IsSpeech(amplitude float64, at time.Time) bool {
	return amplitude > d.threshold
}

// Reset is a no-op; the detector keeps no state
func (d *ThresholdDetector) Reset() {}

// HangoverDetector keeps a chunk classified as speech through short pauses.
// Once speech starts, silence chunks still count as speech until the pause
// exceeds the maximum silence duration.
type HangoverDetector struct {
	threshold  float64
	maxSilence time.Duration

	speaking   bool
	lastSpeech time.Time
}

// NewHangoverDetector creates a detector that bridges pauses up to maxSilence
func NewHangoverDetector(threshold float64, maxSilence time.Duration) *HangoverDetector {
	return &HangoverDetector{
		threshold:  threshold,
		maxSilence: maxSilence,
	}
}

func (d *HangoverDetector) Name() string { return "hangover" }

// IsSpeech tracks an utterance across chunks. A loud chunk starts or extends
// the utterance; a quiet chunk extends it only while the pause since the last
// loud chunk stays within the maximum silence duration.
func (d *HangoverDetector) IsSpeech(amplitude float64, at time.Time) bool {
	if amplitude > d.threshold {
		d.speaking = true
		d.lastSpeech = at
		return true
	}

	if !d.speaking {
		return false
	}

	if at.Sub(d.lastSpeech) > d.maxSilence {
		d.speaking = false
		return false
	}

	return true
}

// Reset clears the utterance state
func (d *HangoverDetector) Reset() {
	d.speaking = false
	d.lastSpeech = time.Time{}
}
