package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/vad"
)

// One registry per test binary
var testMetrics = metrics.NewMetrics()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource delivers scripted blocks synchronously and returns
type fakeSource struct {
	blocks [][]float32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Open() error { return nil }

func (f *fakeSource) Start(ctx context.Context, deliver func(block []float32)) error {
	for _, block := range f.blocks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		deliver(block)
	}
	return nil
}

func (f *fakeSource) Stop() error { return nil }

// blockingSource waits for cancellation
type blockingSource struct{}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Open() error { return nil }

func (b *blockingSource) Start(ctx context.Context, deliver func(block []float32)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingSource) Stop() error { return nil }

// failingSource cannot be acquired
type failingSource struct{}

func (f *failingSource) Name() string { return "failing" }

func (f *failingSource) Open() error { return errors.New("device unavailable") }

func (f *failingSource) Start(context.Context, func(block []float32)) error { return nil }

func (f *failingSource) Stop() error { return nil }

func constantBlock(n int, value float32) []float32 {
	block := make([]float32, n)
	for i := range block {
		block[i] = value
	}
	return block
}

func TestStageProducesClassifiedChunks(t *testing.T) {
	source := &fakeSource{blocks: [][]float32{
		constantBlock(100, 0.5), // speech
		constantBlock(100, 0.0), // silence
	}}

	stage := NewStage(StageConfig{
		SampleRate:     16000,
		FramesPerChunk: 100,
		QueueCapacity:  10,
	}, source, vad.NewThresholdDetector(0.01), testLogger(), testMetrics)

	if err := stage.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var chunks []*audio.Chunk
	for chunk := range stage.Chunks() {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}

	if !chunks[0].IsSpeech {
		t.Error("Expected first chunk to be speech")
	}
	if chunks[1].IsSpeech {
		t.Error("Expected second chunk to be silence")
	}
	if chunks[0].RMS < 0.4 {
		t.Errorf("Expected first chunk RMS near 0.5, got %.3f", chunks[0].RMS)
	}

	stats := stage.GetStats()
	if stats.ChunksCaptured != 2 {
		t.Errorf("Expected 2 chunks captured, got %d", stats.ChunksCaptured)
	}
	if stats.SpeechChunks != 1 || stats.SilenceChunks != 1 {
		t.Errorf("Expected 1 speech / 1 silence, got %d/%d", stats.SpeechChunks, stats.SilenceChunks)
	}

	if err := stage.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestStageEmitsFinalPartialChunk(t *testing.T) {
	// 150 samples with 100-frame chunks: one full chunk plus a 50-sample
	// remainder emitted at shutdown
	source := &fakeSource{blocks: [][]float32{
		constantBlock(150, 0.5),
	}}

	stage := NewStage(StageConfig{
		SampleRate:     16000,
		FramesPerChunk: 100,
		QueueCapacity:  10,
	}, source, vad.NewThresholdDetector(0.01), testLogger(), testMetrics)

	if err := stage.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var chunks []*audio.Chunk
	for chunk := range stage.Chunks() {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Samples) != 100 {
		t.Errorf("Expected full chunk of 100 samples, got %d", len(chunks[0].Samples))
	}
	if len(chunks[1].Samples) != 50 {
		t.Errorf("Expected final chunk of 50 samples, got %d", len(chunks[1].Samples))
	}

	stage.Stop()
}

func TestStageDropsNewestWhenQueueFull(t *testing.T) {
	// 15 chunks into a queue of 10 with no consumer: the first 10 stay,
	// the last 5 are dropped, order is preserved
	blocks := make([][]float32, 15)
	for i := range blocks {
		blocks[i] = constantBlock(100, 0.5)
	}
	source := &fakeSource{blocks: blocks}

	stage := NewStage(StageConfig{
		SampleRate:     16000,
		FramesPerChunk: 100,
		QueueCapacity:  10,
	}, source, vad.NewThresholdDetector(0.01), testLogger(), testMetrics)

	if err := stage.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for the producer to finish before draining
	if err := stage.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	var chunks []*audio.Chunk
	for chunk := range stage.Chunks() {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 10 {
		t.Fatalf("Expected 10 delivered chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.Seq != uint64(i) {
			t.Errorf("Chunk %d: expected seq %d, got %d (order not preserved)", i, i, chunk.Seq)
		}
	}

	stats := stage.GetStats()
	if stats.ChunksCaptured != 15 {
		t.Errorf("Expected 15 chunks captured, got %d", stats.ChunksCaptured)
	}
	if stats.ChunksDropped != 5 {
		t.Errorf("Expected 5 chunks dropped, got %d", stats.ChunksDropped)
	}
	if stats.ChunksDelivered != 10 {
		t.Errorf("Expected 10 chunks delivered, got %d", stats.ChunksDelivered)
	}
}

func TestStageStartFailsWhenSourceCannotOpen(t *testing.T) {
	stage := NewStage(StageConfig{
		SampleRate:     16000,
		FramesPerChunk: 100,
		QueueCapacity:  10,
	}, &failingSource{}, vad.NewThresholdDetector(0.01), testLogger(), testMetrics)

	if err := stage.Start(); err == nil {
		t.Fatal("Expected Start to fail when the source cannot open")
	}
}

func TestStageStopCancelsSource(t *testing.T) {
	stage := NewStage(StageConfig{
		SampleRate:     16000,
		FramesPerChunk: 100,
		QueueCapacity:  10,
	}, &blockingSource{}, vad.NewThresholdDetector(0.01), testLogger(), testMetrics)

	if err := stage.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		stage.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the source")
	}

	// Queue must be closed after shutdown
	if _, ok := <-stage.Chunks(); ok {
		t.Error("Expected chunk queue to be closed after Stop")
	}
}
