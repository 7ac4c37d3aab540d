package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Snippet is one indexed piece of sales technique material
type Snippet struct {
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Importance int      `json:"importance"`
}

// Result is a snippet scored against a query
type Result struct {
	Snippet
	Similarity float64 `json:"similarity"`
}

// Retriever finds the snippets most relevant to a query
type Retriever interface {
	Search(query string, topK int) []Result
}

// IndexStats represents knowledge index statistics
type IndexStats struct {
	TotalSnippets int       `json:"total_snippets"`
	Categories    []string  `json:"categories"`
	AvgImportance float64   `json:"avg_importance"`
	BuiltAt       time.Time `json:"built_at"`
	Searches      uint64    `json:"searches"`
}

type indexFile struct {
	BuiltAt  time.Time `json:"built_at"`
	Snippets []Snippet `json:"snippets"`
}

// FileIndex is a Retriever backed by a JSON index file. Ranking is lexical:
// query tokens are matched against snippet content and keywords, with
// importance breaking ties.
type FileIndex struct {
	snippets []Snippet
	builtAt  time.Time

	// Precomputed per snippet for scoring
	contentLower []string
	keywordSets  []map[string]bool

	searches uint64
	mu       sync.RWMutex
}

// LoadIndex reads a knowledge index from a JSON file
func LoadIndex(path string) (*FileIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}

	return NewFileIndex(file.Snippets, file.BuiltAt), nil
}

// NewFileIndex builds an in-memory index over the given snippets
func NewFileIndex(snippets []Snippet, builtAt time.Time) *FileIndex {
	idx := &FileIndex{
		snippets:     snippets,
		builtAt:      builtAt,
		contentLower: make([]string, len(snippets)),
		keywordSets:  make([]map[string]bool, len(snippets)),
	}

	for i, snippet := range snippets {
		idx.contentLower[i] = strings.ToLower(snippet.Content)
		set := make(map[string]bool, len(snippet.Keywords))
		for _, keyword := range snippet.Keywords {
			set[strings.ToLower(keyword)] = true
		}
		idx.keywordSets[i] = set
	}

	return idx
}

// Search returns the topK snippets most relevant to the query, best first.
// Snippets matching no query token are never returned.
func (idx *FileIndex) Search(query string, topK int) []Result {
	idx.mu.Lock()
	idx.searches++
	idx.mu.Unlock()

	if topK <= 0 {
		topK = 3
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		index int
		score float64
	}

	candidates := make([]scored, 0, len(idx.snippets))
	for i := range idx.snippets {
		score := 0.0
		for _, token := range tokens {
			if strings.Contains(idx.contentLower[i], token) {
				score += 1.0
			}
			if idx.keywordSets[i][token] {
				score += 2.0
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{index: i, score: score})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return idx.snippets[candidates[a].index].Importance > idx.snippets[candidates[b].index].Importance
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	maxScore := 3.0 * float64(len(tokens))
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Snippet:    idx.snippets[c.index],
			Similarity: c.score / maxScore,
		})
	}

	return results
}

// Size returns the number of indexed snippets
func (idx *FileIndex) Size() int {
	return len(idx.snippets)
}

// GetStats returns current index statistics
func (idx *FileIndex) GetStats() IndexStats {
	idx.mu.RLock()
	searches := idx.searches
	idx.mu.RUnlock()

	categorySet := make(map[string]bool)
	totalImportance := 0
	for _, snippet := range idx.snippets {
		categorySet[snippet.Category] = true
		totalImportance += snippet.Importance
	}

	categories := make([]string, 0, len(categorySet))
	for category := range categorySet {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	avgImportance := 0.0
	if len(idx.snippets) > 0 {
		avgImportance = float64(totalImportance) / float64(len(idx.snippets))
	}

	return IndexStats{
		TotalSnippets: len(idx.snippets),
		Categories:    categories,
		AvgImportance: avgImportance,
		BuiltAt:       idx.builtAt,
		Searches:      searches,
	}
}

// tokenize lowercases the query and splits it into unique tokens of at
// least 3 runes; shorter words are articles and particles with no
// ranking value.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) < 3 || seen[field] {
			continue
		}
		seen[field] = true
		tokens = append(tokens, field)
	}

	return tokens
}
