package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/audio"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/conversation"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/suggestion"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/transcription"
)

// Transcriber converts one speech segment into text. A nil result with no
// error means the transcript was too short to use.
type Transcriber interface {
	Transcribe(ctx context.Context, segment *audio.Segment) (*transcription.Result, error)
}

// Advisor turns conversation updates into suggestions. A nil suggestion
// with no error means the cooldown suppressed this utterance.
type Advisor interface {
	Process(ctx context.Context, text string, state conversation.State, now time.Time) (*suggestion.Suggestion, error)
	Reset()
}

// DeliveryFunc receives each suggestion inline on the pipeline worker
type DeliveryFunc func(*suggestion.Suggestion)

// Config contains pipeline configuration
type Config struct {
	Segmenter    audio.SegmenterConfig
	PollInterval time.Duration // bounded wait on the chunk queue between timeout checks
	JoinTimeout  time.Duration // how long Stop waits for the worker before reporting a leak
}

// Stats represents pipeline statistics
type Stats struct {
	SessionID            string        `json:"session_id"`
	Uptime               time.Duration `json:"uptime"`
	ChunksProcessed      uint64        `json:"chunks_processed"`
	SegmentsProcessed    uint64        `json:"segments_processed"`
	TranscriptsAccepted  uint64        `json:"transcripts_accepted"`
	TranscriptsDiscarded uint64        `json:"transcripts_discarded"`
	TranscriptsFailed    uint64        `json:"transcripts_failed"`
	SuggestionsDelivered uint64        `json:"suggestions_delivered"`
	SuggestionsFailed    uint64        `json:"suggestions_failed"`
	WorkerLeaked         bool          `json:"worker_leaked"`
}

// Pipeline is the consumer half of the agent: a single worker goroutine
// that drains the capture queue, accumulates speech into segments, and runs
// each segment through transcription, conversation tracking, and suggestion
// generation with inline delivery. Together with the capture goroutine it
// forms the only two threads of control in the system.
type Pipeline struct {
	config      Config
	chunks      <-chan *audio.Chunk
	segmenter   *audio.Segmenter
	transcriber Transcriber
	tracker     *conversation.Tracker
	advisor     Advisor
	deliver     DeliveryFunc
	logger      *slog.Logger
	metrics     *metrics.Metrics

	sessionID string
	startedAt time.Time

	// runCtx only aborts the worker loop's waiting. External calls run on
	// svcCtx so an in-flight request is never interrupted by Stop.
	runCtx    context.Context
	runCancel context.CancelFunc
	svcCtx    context.Context

	done chan struct{}

	// Statistics
	chunksProcessed      uint64
	segmentsProcessed    uint64
	transcriptsAccepted  uint64
	transcriptsDiscarded uint64
	transcriptsFailed    uint64
	suggestionsDelivered uint64
	suggestionsFailed    uint64
	workerLeaked         bool

	mu sync.RWMutex
}

// NewPipeline creates a pipeline consuming the given chunk stream
func NewPipeline(config Config, chunks <-chan *audio.Chunk, transcriber Transcriber,
	tracker *conversation.Tracker, advisor Advisor, deliver DeliveryFunc,
	logger *slog.Logger, m *metrics.Metrics) *Pipeline {

	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = 5 * time.Second
	}
	if deliver == nil {
		deliver = func(*suggestion.Suggestion) {}
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	return &Pipeline{
		config:      config,
		chunks:      chunks,
		segmenter:   audio.NewSegmenter(config.Segmenter, time.Now()),
		transcriber: transcriber,
		tracker:     tracker,
		advisor:     advisor,
		deliver:     deliver,
		logger:      logger,
		metrics:     m,
		sessionID:   uuid.NewString(),
		runCtx:      runCtx,
		runCancel:   runCancel,
		svcCtx:      context.Background(),
	}
}

// Start launches the pipeline worker
func (p *Pipeline) Start() error {
	p.startedAt = time.Now()
	p.done = make(chan struct{})

	p.logger.Info("Starting pipeline",
		slog.String("session_id", p.sessionID),
		slog.Float64("poll_interval_sec", p.config.PollInterval.Seconds()),
		slog.Float64("min_segment_sec", p.config.Segmenter.MinDuration.Seconds()),
		slog.Float64("max_segment_sec", p.config.Segmenter.MaxDuration.Seconds()),
	)

	go p.run()
	return nil
}

// Stop waits for the worker to drain and exit. The capture stage must be
// stopped first so the chunk stream closes. If the worker is still busy in
// an external call after the join timeout it is left to finish on its own
// and the leak is reported.
func (p *Pipeline) Stop() error {
	if p.done == nil {
		return nil
	}

	p.logger.Info("Stopping pipeline...")

	select {
	case <-p.done:
	case <-time.After(p.config.JoinTimeout):
		p.mu.Lock()
		p.workerLeaked = true
		p.mu.Unlock()
		p.runCancel()

		p.logger.Warn("Pipeline worker still busy after join timeout",
			slog.Float64("join_timeout_sec", p.config.JoinTimeout.Seconds()),
		)
		return fmt.Errorf("pipeline worker did not exit within %v", p.config.JoinTimeout)
	}

	p.runCancel()

	stats := p.GetStats()
	p.logger.Info("Pipeline stopped",
		slog.String("session_id", stats.SessionID),
		slog.Uint64("segments_processed", stats.SegmentsProcessed),
		slog.Uint64("transcripts_accepted", stats.TranscriptsAccepted),
		slog.Uint64("suggestions_delivered", stats.SuggestionsDelivered),
	)
	return nil
}

// SessionID returns the identifier assigned to this advisory session
func (p *Pipeline) SessionID() string {
	return p.sessionID
}

// Done reports worker completion: the channel closes once the worker has
// drained and exited. Nil before Start.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// State returns a snapshot of the current conversation state
func (p *Pipeline) State() conversation.State {
	return p.tracker.GetState()
}

// Reset starts a fresh conversation within the same session. Pending audio
// in the segmenter is kept and flows into the new conversation.
func (p *Pipeline) Reset() {
	p.tracker.Reset()
	p.advisor.Reset()

	p.logger.Info("Pipeline conversation reset", slog.String("session_id", p.sessionID))
}

// SegmenterStats returns current segment accumulation statistics
func (p *Pipeline) SegmenterStats() audio.SegmenterStats {
	return p.segmenter.GetStats()
}

// GetStats returns current pipeline statistics
func (p *Pipeline) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	uptime := time.Duration(0)
	if !p.startedAt.IsZero() {
		uptime = time.Since(p.startedAt)
	}

	return Stats{
		SessionID:            p.sessionID,
		Uptime:               uptime,
		ChunksProcessed:      p.chunksProcessed,
		SegmentsProcessed:    p.segmentsProcessed,
		TranscriptsAccepted:  p.transcriptsAccepted,
		TranscriptsDiscarded: p.transcriptsDiscarded,
		TranscriptsFailed:    p.transcriptsFailed,
		SuggestionsDelivered: p.suggestionsDelivered,
		SuggestionsFailed:    p.suggestionsFailed,
		WorkerLeaked:         p.workerLeaked,
	}
}

// run is the worker loop. Between chunks it waits at most one poll
// interval so silence timeouts fire even when the queue is idle. The timer
// is reset on every chunk, so a timeout check only happens after a full
// quiet interval.
func (p *Pipeline) run() {
	defer close(p.done)

	timer := time.NewTimer(p.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-p.runCtx.Done():
			p.logger.Info("Pipeline worker aborted")
			p.finish()
			return

		case chunk, ok := <-p.chunks:
			if !ok {
				p.logger.Info("Chunk stream closed, draining pipeline")
				p.finish()
				return
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.config.PollInterval)

			p.handleChunk(chunk)

		case now := <-timer.C:
			timer.Reset(p.config.PollInterval)

			if segment := p.segmenter.CheckTimeout(now); segment != nil {
				p.handleSegment(segment, audio.FlushSilenceTimeout)
			}
		}
	}
}

// finish flushes whatever speech is still accumulated and runs it through
// the full segment path before the worker exits
func (p *Pipeline) finish() {
	if segment := p.segmenter.Flush(time.Now()); segment != nil {
		p.handleSegment(segment, audio.FlushShutdown)
	}

	p.mu.RLock()
	chunks := p.chunksProcessed
	segments := p.segmentsProcessed
	p.mu.RUnlock()

	p.logger.Info("Pipeline worker finished",
		slog.Uint64("chunks_processed", chunks),
		slog.Uint64("segments_processed", segments),
	)
}

func (p *Pipeline) handleChunk(chunk *audio.Chunk) {
	p.mu.Lock()
	p.chunksProcessed++
	p.mu.Unlock()

	segment, reason := p.segmenter.Add(chunk, time.Now())
	if segment != nil {
		p.handleSegment(segment, reason)
	}
}

// handleSegment runs one speech segment through transcription,
// conversation tracking, and suggestion generation. Every step that fails
// or filters simply drops the segment; the pipeline moves on.
func (p *Pipeline) handleSegment(segment *audio.Segment, reason audio.FlushReason) {
	p.mu.Lock()
	p.segmentsProcessed++
	p.mu.Unlock()
	p.metrics.RecordSegmentFlushed(string(reason), segment.Duration.Seconds())

	p.logger.Info("Speech segment ready",
		slog.String("reason", string(reason)),
		slog.Float64("duration_sec", segment.Duration.Seconds()),
		slog.Int("chunks", segment.Chunks),
	)

	result, err := p.transcriber.Transcribe(p.svcCtx, segment)
	if err != nil {
		p.mu.Lock()
		p.transcriptsFailed++
		p.mu.Unlock()

		p.logger.Error("Transcription failed, segment lost",
			slog.String("error", err.Error()),
			slog.Float64("duration_sec", segment.Duration.Seconds()),
		)
		return
	}
	if result == nil {
		p.mu.Lock()
		p.transcriptsDiscarded++
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.transcriptsAccepted++
	p.mu.Unlock()

	state := p.tracker.Update(result.Text, time.Now())

	s, err := p.advisor.Process(p.svcCtx, result.Text, state, time.Now())
	if err != nil {
		p.mu.Lock()
		p.suggestionsFailed++
		p.mu.Unlock()

		p.logger.Error("Suggestion generation failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if s == nil {
		return
	}

	p.mu.Lock()
	p.suggestionsDelivered++
	p.mu.Unlock()

	p.deliver(s)
}
