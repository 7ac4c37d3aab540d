package audio

import (
	"sync"
	"time"
)

// FlushReason identifies which condition closed a segment.
type FlushReason string

const (
	FlushMinDuration    FlushReason = "min_duration"
	FlushMaxDuration    FlushReason = "max_duration"
	FlushSilenceTimeout FlushReason = "silence_timeout"
	FlushShutdown       FlushReason = "shutdown"
)

// SegmenterConfig contains configuration for speech segment accumulation
type SegmenterConfig struct {
	MinDuration    time.Duration
	MaxDuration    time.Duration
	MinChunks      int
	SilenceTimeout time.Duration
	SampleRate     int
}

// Segmenter accumulates speech chunks into transcription-ready segments.
// Silence chunks are discarded. Speech chunks are enhanced on arrival and
// appended until a flush condition fires:
//
//   - accumulated duration >= MinDuration and chunk count > MinChunks
//   - accumulated duration >= MaxDuration
//   - no flush for longer than SilenceTimeout while duration >= MinDuration
//
// A final Flush on shutdown may emit a segment shorter than MinDuration.
type Segmenter struct {
	config SegmenterConfig

	samples   []float32
	chunks    int
	startTime time.Time
	lastFlush time.Time

	// Statistics
	speechChunks    uint64
	silenceChunks   uint64
	segmentsFlushed uint64
	flushCounts     map[FlushReason]uint64
	totalFlushed    time.Duration

	mu sync.RWMutex
}

// SegmenterStats represents segment accumulation statistics
type SegmenterStats struct {
	SpeechChunks       uint64  `json:"speech_chunks"`
	SilenceChunks      uint64  `json:"silence_chunks_discarded"`
	SegmentsFlushed    uint64  `json:"segments_flushed"`
	FlushesMinDuration uint64  `json:"flushes_min_duration"`
	FlushesMaxDuration uint64  `json:"flushes_max_duration"`
	FlushesTimeout     uint64  `json:"flushes_silence_timeout"`
	FlushesShutdown    uint64  `json:"flushes_shutdown"`
	PendingChunks      int     `json:"pending_chunks"`
	PendingDuration    float64 `json:"pending_duration_sec"`
	AvgSegmentDuration float64 `json:"avg_segment_duration_sec"`
}

// NewSegmenter creates a new speech segmenter. The silence timeout clock
// starts at now.
func NewSegmenter(config SegmenterConfig, now time.Time) *Segmenter {
	return &Segmenter{
		config:      config,
		lastFlush:   now,
		flushCounts: make(map[FlushReason]uint64),
	}
}

// Add processes one captured chunk. Silence chunks are discarded, speech
// chunks are enhanced and accumulated. Returns a non-nil segment with its
// flush reason when the addition completed a segment.
func (s *Segmenter) Add(chunk *Chunk, now time.Time) (*Segment, FlushReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !chunk.IsSpeech {
		s.silenceChunks++
		return nil, ""
	}

	s.speechChunks++

	Enhance(chunk.Samples, chunk.SampleRate)

	if s.chunks == 0 {
		s.startTime = chunk.Timestamp
	}
	s.samples = append(s.samples, chunk.Samples...)
	s.chunks++

	dur := s.pendingDuration()
	if dur >= s.config.MaxDuration {
		return s.finalize(now, FlushMaxDuration), FlushMaxDuration
	}
	if dur >= s.config.MinDuration && s.chunks > s.config.MinChunks {
		return s.finalize(now, FlushMinDuration), FlushMinDuration
	}

	return nil, ""
}

// CheckTimeout flushes the pending segment when no flush has happened for
// longer than the silence timeout and the segment meets the minimum
// duration. Called by the pipeline when the chunk queue goes quiet.
func (s *Segmenter) CheckTimeout(now time.Time) *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chunks == 0 {
		return nil
	}
	if now.Sub(s.lastFlush) <= s.config.SilenceTimeout {
		return nil
	}
	if s.pendingDuration() < s.config.MinDuration {
		return nil
	}

	return s.finalize(now, FlushSilenceTimeout)
}

// Flush emits whatever is pending as a final segment, regardless of the
// minimum duration. Used on shutdown so trailing speech is not lost.
func (s *Segmenter) Flush(now time.Time) *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chunks == 0 {
		return nil
	}

	return s.finalize(now, FlushShutdown)
}

// Pending returns the accumulated duration and chunk count not yet flushed.
func (s *Segmenter) Pending() (time.Duration, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pendingDuration(), s.chunks
}

// GetStats returns current segmenter statistics
func (s *Segmenter) GetStats() SegmenterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avgDuration := float64(0)
	if s.segmentsFlushed > 0 {
		avgDuration = s.totalFlushed.Seconds() / float64(s.segmentsFlushed)
	}

	return SegmenterStats{
		SpeechChunks:       s.speechChunks,
		SilenceChunks:      s.silenceChunks,
		SegmentsFlushed:    s.segmentsFlushed,
		FlushesMinDuration: s.flushCounts[FlushMinDuration],
		FlushesMaxDuration: s.flushCounts[FlushMaxDuration],
		FlushesTimeout:     s.flushCounts[FlushSilenceTimeout],
		FlushesShutdown:    s.flushCounts[FlushShutdown],
		PendingChunks:      s.chunks,
		PendingDuration:    s.pendingDuration().Seconds(),
		AvgSegmentDuration: avgDuration,
	}
}

// finalize builds the segment from accumulated samples and resets the
// accumulator. Caller must hold the lock.
func (s *Segmenter) finalize(now time.Time, reason FlushReason) *Segment {
	seg := &Segment{
		Samples:    s.samples,
		SampleRate: s.config.SampleRate,
		Start:      s.startTime,
		Duration:   s.pendingDuration(),
		Chunks:     s.chunks,
	}

	s.samples = nil
	s.chunks = 0
	s.startTime = time.Time{}
	s.lastFlush = now

	s.segmentsFlushed++
	s.flushCounts[reason]++
	s.totalFlushed += seg.Duration

	return seg
}

// pendingDuration computes the duration of accumulated samples. Caller
// must hold the lock.
func (s *Segmenter) pendingDuration() time.Duration {
	if s.config.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(s.samples)) / float64(s.config.SampleRate) * float64(time.Second))
}
