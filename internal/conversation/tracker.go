package conversation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
)

// Stage identifies where the client is in the sales funnel
type Stage string

const (
	StageAwareness  Stage = "awareness"
	StageDiscovery  Stage = "discovery"
	StageSolution   Stage = "solution"
	StageEvaluation Stage = "evaluation"
	StageDecision   Stage = "decision"
)

// Sentiment is the client's mood as read from the latest utterance
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

const maxHistoryLines = 20

// Keyword tables are Brazilian Portuguese and matched as substrings of the
// lowercased utterance.
var objectionPatterns = []string{
	"muito caro", "não tenho orçamento", "vou pensar", "não é prioridade",
	"já uso", "não preciso", "complicado", "não funciona",
}

var buyingSignalPatterns = []string{
	"quando", "como implementar", "quanto custa", "prazo", "contrato",
	"vamos", "quero", "preciso", "interessante", "faz sentido",
}

var positiveWords = []string{"gosto", "interessante", "bom", "excelente", "legal", "perfeito"}

var negativeWords = []string{"não", "difícil", "caro", "problema", "complicado", "ruim"}

// Stage detection walks the funnel in order and keeps the first stage whose
// indicator appears in the utterance.
var stageOrder = []Stage{StageAwareness, StageDiscovery, StageSolution, StageEvaluation, StageDecision}

var stageIndicators = map[Stage][]string{
	StageAwareness:  {"empresa", "sobre", "quem somos"},
	StageDiscovery:  {"problema", "dificuldade", "desafio", "processo"},
	StageSolution:   {"solução", "como resolve", "funciona", "features"},
	StageEvaluation: {"preço", "custo", "investimento", "comparar"},
	StageDecision:   {"contrato", "fechar", "vamos começar", "quando"},
}

// State represents the conversation as understood so far
type State struct {
	Stage         Stage     `json:"stage"`
	Sentiment     Sentiment `json:"sentiment"`
	Objections    []string  `json:"objections"`
	BuyingSignals []string  `json:"buying_signals"`
	History       []string  `json:"history"`
	Utterances    uint64    `json:"utterances"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Delta describes what a single utterance changed
type Delta struct {
	NewObjections int
	NewSignals    int
	StageChanged  bool
}

// NewState returns the initial conversation state
func NewState() State {
	return State{
		Stage:     StageDiscovery,
		Sentiment: SentimentNeutral,
	}
}

// HistoryText renders the conversation history as one line per utterance
func (s State) HistoryText() string {
	return strings.Join(s.History, "\n")
}

// Apply folds one client utterance into the state. It is a pure function:
// the input state is not modified and the returned state shares no slices
// with it.
func Apply(state State, text string, now time.Time) (State, Delta) {
	next := state
	next.Objections = append([]string(nil), state.Objections...)
	next.BuyingSignals = append([]string(nil), state.BuyingSignals...)
	next.History = append([]string(nil), state.History...)

	var delta Delta
	textLower := strings.ToLower(text)

	// Objections and buying signals accumulate, each pattern counted once
	for _, pattern := range objectionPatterns {
		if strings.Contains(textLower, pattern) && !containsString(next.Objections, pattern) {
			next.Objections = append(next.Objections, pattern)
			delta.NewObjections++
		}
	}

	for _, pattern := range buyingSignalPatterns {
		if strings.Contains(textLower, pattern) && !containsString(next.BuyingSignals, pattern) {
			next.BuyingSignals = append(next.BuyingSignals, pattern)
			delta.NewSignals++
		}
	}

	// Sentiment reflects the latest utterance only; ties stay neutral
	posCount := 0
	for _, word := range positiveWords {
		if strings.Contains(textLower, word) {
			posCount++
		}
	}
	negCount := 0
	for _, word := range negativeWords {
		if strings.Contains(textLower, word) {
			negCount++
		}
	}
	switch {
	case posCount > negCount:
		next.Sentiment = SentimentPositive
	case negCount > posCount:
		next.Sentiment = SentimentNegative
	default:
		next.Sentiment = SentimentNeutral
	}

	for _, stage := range stageOrder {
		if containsAny(textLower, stageIndicators[stage]) {
			if stage != next.Stage {
				delta.StageChanged = true
			}
			next.Stage = stage
			break
		}
	}

	next.History = append(next.History, fmt.Sprintf("[%s] Cliente: %s", now.Format("15:04"), text))
	if len(next.History) > maxHistoryLines {
		next.History = next.History[len(next.History)-maxHistoryLines:]
	}

	next.Utterances++
	next.UpdatedAt = now

	return next, delta
}

// Tracker holds the current conversation state for the pipeline
type Tracker struct {
	state   State
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.RWMutex
}

// NewTracker creates a tracker with a fresh conversation state
func NewTracker(logger *slog.Logger, m *metrics.Metrics) *Tracker {
	return &Tracker{
		state:   NewState(),
		logger:  logger,
		metrics: m,
	}
}

// Update folds one transcribed utterance into the conversation and returns
// the new state
func (t *Tracker) Update(text string, now time.Time) State {
	t.mu.Lock()
	next, delta := Apply(t.state, text, now)
	t.state = next
	t.mu.Unlock()

	t.metrics.RecordConversationUpdate(delta.NewObjections, delta.NewSignals, delta.StageChanged)

	if delta.NewObjections > 0 || delta.NewSignals > 0 || delta.StageChanged {
		t.logger.Info("Conversation state updated",
			slog.String("stage", string(next.Stage)),
			slog.String("sentiment", string(next.Sentiment)),
			slog.Int("new_objections", delta.NewObjections),
			slog.Int("new_signals", delta.NewSignals),
			slog.Bool("stage_changed", delta.StageChanged),
		)
	}

	return next
}

// GetState returns a snapshot of the current conversation state
func (t *Tracker) GetState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := t.state
	snapshot.Objections = append([]string(nil), t.state.Objections...)
	snapshot.BuyingSignals = append([]string(nil), t.state.BuyingSignals...)
	snapshot.History = append([]string(nil), t.state.History...)
	return snapshot
}

// Reset discards the conversation and starts over
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = NewState()
	t.mu.Unlock()

	t.logger.Info("Conversation state reset")
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsAny(text string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}
