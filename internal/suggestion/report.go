package suggestion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/conversation"
)

// ConversationSummary condenses the conversation for the report header
type ConversationSummary struct {
	Stage                conversation.Stage     `json:"stage"`
	Sentiment            conversation.Sentiment `json:"sentiment"`
	ObjectionsCount      int                    `json:"objections_count"`
	BuyingSignalsCount   int                    `json:"buying_signals_count"`
	SuggestionsGenerated int                    `json:"suggestions_generated"`
	LastSuggestion       string                 `json:"last_suggestion,omitempty"`
}

// PerformanceMetrics summarizes suggestion quality for the report
type PerformanceMetrics struct {
	TotalSuggestions int      `json:"total_suggestions"`
	AvgConfidence    float64  `json:"avg_confidence"`
	CategoriesUsed   []string `json:"categories_used"`
}

// Report is the exportable record of one advisory session
type Report struct {
	SessionID           string              `json:"session_id"`
	SessionTimestamp    time.Time           `json:"session_timestamp"`
	ConversationSummary ConversationSummary `json:"conversation_summary"`
	Context             conversation.State  `json:"context"`
	Suggestions         []Suggestion        `json:"suggestions"`
	Performance         PerformanceMetrics  `json:"performance_metrics"`
}

// BuildReport assembles the session report from the engine history and the
// final conversation state
func (e *Engine) BuildReport(sessionID string, state conversation.State, now time.Time) Report {
	history := e.History()
	stats := e.GetStats()

	lastSuggestion := ""
	if len(history) > 0 {
		lastSuggestion = history[len(history)-1].Text
	}

	return Report{
		SessionID:        sessionID,
		SessionTimestamp: now,
		ConversationSummary: ConversationSummary{
			Stage:                state.Stage,
			Sentiment:            state.Sentiment,
			ObjectionsCount:      len(state.Objections),
			BuyingSignalsCount:   len(state.BuyingSignals),
			SuggestionsGenerated: int(stats.Generated),
			LastSuggestion:       lastSuggestion,
		},
		Context:     state,
		Suggestions: history,
		Performance: PerformanceMetrics{
			TotalSuggestions: int(stats.Generated),
			AvgConfidence:    stats.AvgConfidence,
			CategoriesUsed:   stats.CategoriesUsed,
		},
	}
}

// ExportReport writes the session report as session_report_<unix>.json in
// dir and returns the full path
func (e *Engine) ExportReport(dir, sessionID string, state conversation.State, now time.Time) (string, error) {
	report := e.BuildReport(sessionID, state, now)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("session_report_%d.json", now.Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	e.logger.Info("Session report exported", slog.String("path", path))

	return path, nil
}

// Format renders a suggestion as a single console line, marking urgency
// and category the way the seller scans for them
func Format(s *Suggestion) string {
	marker := "💭"
	if s.Urgency >= 8 {
		marker = "🔥"
	} else if s.Urgency >= 6 {
		marker = "💡"
	}

	switch s.Category {
	case "objection_handling":
		marker = "🛡️"
	case "closing":
		marker = "🎯"
	}

	return fmt.Sprintf("%s %s", marker, s.Text)
}
