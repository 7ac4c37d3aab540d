package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/vad"
)

// StageConfig contains configuration for the capture stage
type StageConfig struct {
	SampleRate     int
	FramesPerChunk int
	QueueCapacity  int
}

// Stage is the producer half of the pipeline. It runs the audio source on
// its own goroutine, slices delivered blocks into fixed-duration chunks,
// classifies each chunk by raw RMS, and pushes it onto a bounded queue.
// When the queue is full the newest chunk is dropped so capture never
// blocks; chunks already queued keep their order.
type Stage struct {
	config   StageConfig
	source   SampleSource
	detector vad.Detector
	logger   *slog.Logger
	metrics  *metrics.Metrics

	asm *audio.Assembler
	out chan *audio.Chunk

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	blocksReceived uint64
	chunksCaptured uint64
	chunksDropped  uint64
	speechChunks   uint64
	silenceChunks  uint64

	mu sync.RWMutex
}

// StageStats represents capture stage statistics
type StageStats struct {
	Source          string `json:"source"`
	Detector        string `json:"detector"`
	BlocksReceived  uint64 `json:"blocks_received"`
	ChunksCaptured  uint64 `json:"chunks_captured"`
	ChunksDelivered uint64 `json:"chunks_delivered"`
	ChunksDropped   uint64 `json:"chunks_dropped"`
	SpeechChunks    uint64 `json:"speech_chunks"`
	SilenceChunks   uint64 `json:"silence_chunks"`
	QueueSize       int    `json:"queue_size"`
	QueueCapacity   int    `json:"queue_capacity"`
}

// NewStage creates a new capture stage
func NewStage(cfg StageConfig, source SampleSource, detector vad.Detector,
	logger *slog.Logger, m *metrics.Metrics) *Stage {

	ctx, cancel := context.WithCancel(context.Background())

	return &Stage{
		config:   cfg,
		source:   source,
		detector: detector,
		logger:   logger,
		metrics:  m,
		asm:      audio.NewAssembler(cfg.SampleRate, cfg.FramesPerChunk),
		out:      make(chan *audio.Chunk, cfg.QueueCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start opens the source and launches the capture goroutine. A source
// that cannot be acquired fails Start; nothing is spawned.
func (s *Stage) Start() error {
	if err := s.source.Open(); err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}

	s.logger.Info("Starting capture stage",
		slog.String("source", s.source.Name()),
		slog.String("detector", s.detector.Name()),
		slog.Int("frames_per_chunk", s.config.FramesPerChunk),
		slog.Int("queue_capacity", s.config.QueueCapacity),
	)

	s.wg.Add(1)
	go s.run()

	return nil
}

// Chunks returns the chunk queue. The channel is closed after the source
// finishes and the final partial chunk has been emitted.
func (s *Stage) Chunks() <-chan *audio.Chunk {
	return s.out
}

// Stop cancels the source and waits for the capture goroutine to finish
func (s *Stage) Stop() error {
	s.logger.Info("Stopping capture stage...")

	s.cancel()
	if err := s.source.Stop(); err != nil {
		s.logger.Warn("Error stopping audio source", slog.String("error", err.Error()))
	}

	s.wg.Wait()
	return nil
}

// run executes the source on the capture goroutine and closes the queue
// when it finishes
func (s *Stage) run() {
	defer s.wg.Done()
	defer close(s.out)

	err := s.source.Start(s.ctx, s.handleBlock)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Audio source failed",
			slog.String("source", s.source.Name()),
			slog.String("error", err.Error()),
		)
	}

	// Emit the remainder as one final, possibly short chunk
	if chunk := s.asm.Flush(time.Now()); chunk != nil {
		s.classifyAndPush(chunk)
	}

	stats := s.GetStats()
	s.logger.Info("Capture stage finished",
		slog.Uint64("chunks_captured", stats.ChunksCaptured),
		slog.Uint64("chunks_dropped", stats.ChunksDropped),
		slog.Uint64("speech_chunks", stats.SpeechChunks),
		slog.Uint64("silence_chunks", stats.SilenceChunks),
	)
}

// handleBlock slices a delivered block into chunks
func (s *Stage) handleBlock(block []float32) {
	s.mu.Lock()
	s.blocksReceived++
	s.mu.Unlock()

	for _, chunk := range s.asm.Push(block, time.Now()) {
		s.classifyAndPush(chunk)
	}
}

// classifyAndPush classifies a chunk by its raw RMS and pushes it onto the
// queue without blocking. Classification happens before any enhancement so
// the detector sees the true capture level.
func (s *Stage) classifyAndPush(chunk *audio.Chunk) {
	chunk.IsSpeech = s.detector.IsSpeech(chunk.RMS, chunk.Timestamp)

	s.mu.Lock()
	s.chunksCaptured++
	if chunk.IsSpeech {
		s.speechChunks++
	} else {
		s.silenceChunks++
	}
	s.mu.Unlock()

	s.metrics.RecordChunkCaptured(chunk.IsSpeech, chunk.RMS)

	select {
	case s.out <- chunk:
		s.metrics.SetChunkQueueSize(len(s.out))
	default:
		s.mu.Lock()
		s.chunksDropped++
		s.mu.Unlock()
		s.metrics.RecordChunkDropped()

		s.logger.Warn("Chunk queue full, dropping newest chunk",
			slog.Uint64("seq", chunk.Seq),
			slog.Float64("rms", chunk.RMS),
			slog.Bool("is_speech", chunk.IsSpeech),
		)
	}
}

// GetStats returns current capture statistics
func (s *Stage) GetStats() StageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StageStats{
		Source:          s.source.Name(),
		Detector:        s.detector.Name(),
		BlocksReceived:  s.blocksReceived,
		ChunksCaptured:  s.chunksCaptured,
		ChunksDelivered: s.chunksCaptured - s.chunksDropped,
		ChunksDropped:   s.chunksDropped,
		SpeechChunks:    s.speechChunks,
		SilenceChunks:   s.silenceChunks,
		QueueSize:       len(s.out),
		QueueCapacity:   cap(s.out),
	}
}
