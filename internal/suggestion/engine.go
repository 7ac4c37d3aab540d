package suggestion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/conversation"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/knowledge"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
)

// systemPrompt sets the advisor persona. Responses are written for the
// seller to act on mid-call, so the format rules keep them short.
const systemPrompt = `Você é meu CONSULTOR ESTRATÉGICO DE VENDAS IA em tempo real.

🎯 PERFIL:
- QI 180, extremamente analítico
- Experiência em criar empresas bilionárias
- Profundo conhecimento em psicologia, estratégia e vendas
- Foco em pontos de alavancagem de máximo impacto
- Pensamento por primeiros princípios

🎯 OBJETIVO:
Analisar conversas de vendas em TEMPO REAL e fornecer sugestões estratégicas INSTANTÂNEAS.

🎯 FORMATO DE RESPOSTA:
- MÁXIMO 2 frases curtas
- Foco em AÇÃO imediata
- Baseado nas técnicas do toolkit disponível
- Tom direto e estratégico`

const userPromptTemplate = `🎯 CONTEXTO DISPONÍVEL:
%s

🎯 HISTÓRICO DA CONVERSA:
%s

🎯 CLIENTE DISSE:
"%s"

Forneça uma sugestão estratégica IMEDIATA:`

const (
	snippetContentLimit = 300 // runes of each technique quoted in the prompt
	historyCharLimit    = 500 // trailing runes of history quoted in the prompt
	promptSnippets      = 2   // techniques quoted; all retrieved count as context used
)

// Config contains suggestion engine configuration
type Config struct {
	APIKey       string
	BaseURL      string // optional endpoint override
	Model        string
	Temperature  float32
	MaxTokens    int
	MinInterval  time.Duration // quiet period measured from the last delivered suggestion
	TopK         int           // knowledge snippets retrieved per utterance
	HistoryLimit int           // suggestions retained for the session report
}

// Suggestion is one piece of advice delivered to the seller
type Suggestion struct {
	ID          string    `json:"id"`
	Text        string    `json:"suggestion_text"`
	Confidence  float64   `json:"confidence"`
	Urgency     int       `json:"urgency"`
	Category    string    `json:"category"`
	ContextUsed []string  `json:"context_used"`
	Reasoning   string    `json:"reasoning"`
	Timestamp   time.Time `json:"timestamp"`
}

// EngineStats represents engine statistics
type EngineStats struct {
	Generated        uint64    `json:"suggestions_generated"`
	Failed           uint64    `json:"suggestions_failed"`
	Suppressed       uint64    `json:"suggestions_suppressed"`
	AvgConfidence    float64   `json:"avg_confidence"`
	CategoriesUsed   []string  `json:"categories_used"`
	LastSuggestionAt time.Time `json:"last_suggestion_at"`
}

// Engine turns conversation updates into sales suggestions. One chat
// completion per utterance, gated by a cooldown that restarts only when a
// suggestion is actually delivered.
type Engine struct {
	config    Config
	api       *openai.Client
	retriever knowledge.Retriever
	logger    *slog.Logger
	metrics   *metrics.Metrics

	lastSuccess time.Time
	history     []Suggestion
	generated   uint64
	suppressed  uint64
	failed      uint64

	mu sync.RWMutex
}

// NewEngine creates a new suggestion engine
func NewEngine(config Config, retriever knowledge.Retriever, logger *slog.Logger, m *metrics.Metrics) (*Engine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 200
	}
	if config.MinInterval <= 0 {
		config.MinInterval = 5 * time.Second
	}
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 100
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Engine{
		config:    config,
		api:       openai.NewClientWithConfig(clientConfig),
		retriever: retriever,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Process generates a suggestion for the latest client utterance. Returns
// nil with no error while the cooldown from the last delivered suggestion
// is still running.
func (e *Engine) Process(ctx context.Context, text string, state conversation.State, now time.Time) (*Suggestion, error) {
	e.mu.RLock()
	lastSuccess := e.lastSuccess
	e.mu.RUnlock()

	if !lastSuccess.IsZero() && now.Sub(lastSuccess) < e.config.MinInterval {
		e.mu.Lock()
		e.suppressed++
		e.mu.Unlock()
		e.metrics.RecordSuggestionSuppressed()

		e.logger.Debug("Suggestion suppressed by cooldown",
			slog.Float64("since_last_sec", now.Sub(lastSuccess).Seconds()),
			slog.Float64("min_interval_sec", e.config.MinInterval.Seconds()),
		)
		return nil, nil
	}

	relevant := e.retriever.Search(e.enhanceQuery(text, state), e.config.TopK)
	prompt := e.buildPrompt(text, state, relevant)

	e.metrics.RecordSuggestionRequest()
	startTime := time.Now()

	resp, err := e.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
	})

	elapsed := time.Since(startTime)

	if err != nil {
		e.mu.Lock()
		e.failed++
		e.mu.Unlock()
		e.metrics.RecordSuggestionFailure(elapsed.Seconds())

		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		e.mu.Lock()
		e.failed++
		e.mu.Unlock()
		e.metrics.RecordSuggestionFailure(elapsed.Seconds())

		return nil, fmt.Errorf("completion returned no choices")
	}

	suggestionText := strings.TrimSpace(resp.Choices[0].Message.Content)

	contextUsed := make([]string, 0, len(relevant))
	for _, result := range relevant {
		contextUsed = append(contextUsed, result.Source)
	}

	suggestion := &Suggestion{
		ID:          uuid.NewString(),
		Text:        suggestionText,
		Confidence:  0.8,
		Urgency:     computeUrgency(state),
		Category:    categorize(suggestionText),
		ContextUsed: contextUsed,
		Reasoning:   explainReasoning(state, relevant),
		Timestamp:   now,
	}

	e.mu.Lock()
	e.lastSuccess = now
	e.generated++
	e.history = append(e.history, *suggestion)
	if len(e.history) > e.config.HistoryLimit {
		e.history = e.history[len(e.history)-e.config.HistoryLimit:]
	}
	e.mu.Unlock()
	e.metrics.RecordSuggestionSuccess(elapsed.Seconds(), suggestion.Urgency)

	e.logger.Info("Suggestion generated",
		slog.String("id", suggestion.ID),
		slog.String("category", suggestion.Category),
		slog.Int("urgency", suggestion.Urgency),
		slog.Int("context_snippets", len(relevant)),
		slog.Float64("elapsed_sec", elapsed.Seconds()),
	)

	return suggestion, nil
}

// enhanceQuery widens the retrieval query with accumulated objections and
// the current funnel stage
func (e *Engine) enhanceQuery(text string, state conversation.State) string {
	parts := []string{text}
	parts = append(parts, state.Objections...)
	parts = append(parts, string(state.Stage))
	return strings.Join(parts, " ")
}

func (e *Engine) buildPrompt(text string, state conversation.State, relevant []knowledge.Result) string {
	quoted := relevant
	if len(quoted) > promptSnippets {
		quoted = quoted[:promptSnippets]
	}

	techniques := make([]string, 0, len(quoted))
	for _, result := range quoted {
		techniques = append(techniques, fmt.Sprintf("TÉCNICA (%s): %s...",
			result.Category, truncateRunes(result.Content, snippetContentLimit)))
	}

	return fmt.Sprintf(userPromptTemplate,
		strings.Join(techniques, "\n\n"),
		tailRunes(state.HistoryText(), historyCharLimit),
		text,
	)
}

// computeUrgency scores 1-10 from accumulated conversation pressure
func computeUrgency(state conversation.State) int {
	urgency := 5

	urgency += len(state.Objections) * 2
	urgency += len(state.BuyingSignals)

	switch state.Sentiment {
	case conversation.SentimentNegative:
		urgency += 3
	case conversation.SentimentPositive:
		urgency++
	}

	if urgency > 10 {
		urgency = 10
	}
	return urgency
}

// categorize buckets a suggestion by the action words it uses
func categorize(text string) string {
	textLower := strings.ToLower(text)

	switch {
	case containsAny(textLower, "objeção", "preocupação", "resolver"):
		return "objection_handling"
	case containsAny(textLower, "fechar", "avançar", "próximo"):
		return "closing"
	case containsAny(textLower, "descobrir", "perguntar", "entender"):
		return "discovery"
	case containsAny(textLower, "valor", "benefício", "roi"):
		return "value_proposition"
	default:
		return "general"
	}
}

func explainReasoning(state conversation.State, relevant []knowledge.Result) string {
	parts := []string{
		fmt.Sprintf("Estágio: %s", state.Stage),
		fmt.Sprintf("Sentimento: %s", state.Sentiment),
	}

	if len(state.Objections) > 0 {
		recent := state.Objections
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		parts = append(parts, fmt.Sprintf("Objeções: %s", strings.Join(recent, ", ")))
	}

	if len(relevant) > 0 {
		quoted := relevant
		if len(quoted) > promptSnippets {
			quoted = quoted[:promptSnippets]
		}
		categories := make([]string, 0, len(quoted))
		for _, result := range quoted {
			categories = append(categories, result.Category)
		}
		parts = append(parts, fmt.Sprintf("Técnicas: %s", strings.Join(categories, ", ")))
	}

	return strings.Join(parts, " | ")
}

// History returns a copy of all suggestions generated this session
func (e *Engine) History() []Suggestion {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Suggestion(nil), e.history...)
}

// Reset clears the suggestion history and the cooldown
func (e *Engine) Reset() {
	e.mu.Lock()
	e.history = nil
	e.generated = 0
	e.lastSuccess = time.Time{}
	e.mu.Unlock()
}

// GetStats returns current engine statistics
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	totalConfidence := 0.0
	categorySet := make(map[string]bool)
	for _, s := range e.history {
		totalConfidence += s.Confidence
		categorySet[s.Category] = true
	}

	avgConfidence := 0.0
	if len(e.history) > 0 {
		avgConfidence = totalConfidence / float64(len(e.history))
	}

	categories := make([]string, 0, len(categorySet))
	for category := range categorySet {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return EngineStats{
		Generated:        e.generated,
		Failed:           e.failed,
		Suppressed:       e.suppressed,
		AvgConfidence:    avgConfidence,
		CategoriesUsed:   categories,
		LastSuggestionAt: e.lastSuccess,
	}
}

func containsAny(text string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func tailRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[len(runes)-limit:])
}
