package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
)

// SampleSource delivers raw sample blocks to the capture stage. Open
// acquires the input synchronously so acquisition failures surface at
// stage start. Start blocks until the source is exhausted, fails, or the
// context is cancelled; it runs on the capture goroutine. Stop unblocks a
// pending Start from another goroutine.
type SampleSource interface {
	Name() string
	Open() error
	Start(ctx context.Context, deliver func(block []float32)) error
	Stop() error
}

// WAVSource replays a WAV file as a live capture feed. Blocks are paced
// at the real-time rate unless Realtime is disabled.
type WAVSource struct {
	path       string
	sampleRate int
	blockSize  int
	logger     *slog.Logger

	opened   bool
	samples  []float32
	duration float64

	// Realtime paces block delivery at the capture rate. Disabled in
	// tests to replay instantly.
	Realtime bool
}

// NewWAVSource creates a source that replays the WAV file at path. The
// file's sample rate must match the configured capture rate.
func NewWAVSource(path string, sampleRate, blockSize int, logger *slog.Logger) *WAVSource {
	return &WAVSource{
		path:       path,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		logger:     logger,
		Realtime:   true,
	}
}

func (s *WAVSource) Name() string { return "wav" }

// Open reads and decodes the file. A missing file, a corrupt header, or a
// sample rate mismatch fails here, before any goroutine is started.
func (s *WAVSource) Open() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read WAV file: %w", err)
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		return fmt.Errorf("failed to inspect WAV file: %w", err)
	}

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("failed to decode WAV file: %w", err)
	}

	if rate != s.sampleRate {
		return fmt.Errorf("sample rate mismatch: file has %d Hz, capture configured for %d Hz", rate, s.sampleRate)
	}

	s.opened = true
	s.samples = samples
	s.duration = info.Duration
	return nil
}

// Start delivers the decoded file block by block. Returns nil when the
// file is fully replayed.
func (s *WAVSource) Start(ctx context.Context, deliver func(block []float32)) error {
	if !s.opened {
		return fmt.Errorf("WAV source not opened")
	}
	samples := s.samples

	s.logger.Info("Replaying WAV file",
		slog.String("path", s.path),
		slog.Float64("duration_sec", s.duration),
		slog.Int("sample_rate", s.sampleRate),
		slog.Int("block_size", s.blockSize),
		slog.Bool("realtime", s.Realtime),
	)

	blockDuration := time.Duration(float64(s.blockSize) / float64(s.sampleRate) * float64(time.Second))

	var ticker *time.Ticker
	if s.Realtime {
		ticker = time.NewTicker(blockDuration)
		defer ticker.Stop()
	}

	for offset := 0; offset < len(samples); offset += s.blockSize {
		end := offset + s.blockSize
		if end > len(samples) {
			end = len(samples)
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		deliver(samples[offset:end])
	}

	s.logger.Info("WAV file replay finished", slog.String("path", s.path))
	return nil
}

// Stop is a no-op; replay stops through context cancellation
func (s *WAVSource) Stop() error {
	return nil
}
