package knowledge

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	minSectionLength = 100
	minSnippetLength = 50
	maxKeywords      = 5
)

// Section headers used across the toolkit files
var sectionDividers = []string{"===", "---", "###", "##", "🎯", "💡", "⚡", "🔥"}

// Toolkit directory names map to snippet categories
var categoryByDir = map[string]string{
	"01_PROSPECCAO_AVANCADA":     "prospecting",
	"02_QUALIFICACAO_LEADS":      "qualification",
	"03_DISCOVERY_COMPLETO":      "discovery",
	"04_DEMO_PERSONALIZADA":      "demo",
	"05_PROPOSTA_COMERCIAL":      "proposal",
	"06_NEGOCIACAO_FECHAMENTO":   "closing",
	"07_ANALISE_COMPETITIVA":     "competitive",
	"08_ROI_BUSINESS_CASE":       "roi",
	"09_PLAYBOOKS_VERTICAIS":     "industry",
	"10_CRM_AUTOMACAO":           "automation",
	"11_FOLLOW_UP_SEQUENCES":     "follow_up",
	"12_OBJECTION_HANDLING":      "objections",
	"13_RECURSOS_EXECUTIVOS":     "executive",
	"14_POS_VENDA_EXPANSION":     "expansion",
}

var salesKeywords = []string{
	"objeção", "fechamento", "prospect", "lead", "discovery", "demo",
	"proposta", "negociação", "roi", "valor", "benefício", "dor",
	"necessidade", "orçamento", "autoridade", "decisor", "urgência",
	"competição", "diferencial", "case", "referência", "follow-up",
}

var strategicCategories = map[string]bool{
	"qualification": true,
	"discovery":     true,
	"closing":       true,
	"objections":    true,
}

var highValueWords = []string{"fechamento", "objeção", "decisor", "orçamento", "roi"}

// BuildIndex walks a toolkit directory and extracts snippets from every
// .txt file it contains
func BuildIndex(rootDir string) ([]Snippet, error) {
	var snippets []Snippet

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".txt") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		source, relErr := filepath.Rel(rootDir, path)
		if relErr != nil {
			source = path
		}

		category := categoryFromPath(path)
		for _, section := range splitSections(string(data)) {
			section = strings.TrimSpace(section)
			if len(section) <= minSnippetLength {
				continue
			}
			snippets = append(snippets, Snippet{
				Content:    section,
				Source:     source,
				Category:   category,
				Keywords:   extractKeywords(section),
				Importance: calculateImportance(section, category),
			})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk toolkit directory: %w", err)
	}

	return snippets, nil
}

// SaveIndex writes snippets as a JSON index file
func SaveIndex(path string, snippets []Snippet) error {
	data, err := json.MarshalIndent(indexFile{
		BuiltAt:  time.Now(),
		Snippets: snippets,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}

	return nil
}

func categoryFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if category, ok := categoryByDir[part]; ok {
			return category
		}
	}
	return "general"
}

// splitSections cuts file content at section headers, falling back to
// paragraph splitting for files without them
func splitSections(content string) []string {
	var sections []string
	current := strings.Builder{}

	for _, line := range strings.Split(content, "\n") {
		isHeader := false
		for _, divider := range sectionDividers {
			if strings.Contains(line, divider) {
				isHeader = true
				break
			}
		}

		if isHeader && len(strings.TrimSpace(current.String())) > minSectionLength {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if len(strings.TrimSpace(current.String())) > minSectionLength {
		sections = append(sections, current.String())
	}

	if len(sections) >= 2 {
		return sections
	}

	// No headers found, one snippet per substantial paragraph
	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if len(strings.TrimSpace(p)) > minSectionLength {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func extractKeywords(text string) []string {
	textLower := strings.ToLower(text)

	var found []string
	for _, keyword := range salesKeywords {
		if strings.Contains(textLower, keyword) {
			found = append(found, keyword)
			if len(found) == maxKeywords {
				break
			}
		}
	}
	return found
}

func calculateImportance(text, category string) int {
	importance := 5

	if strategicCategories[category] {
		importance += 2
	}

	textLower := strings.ToLower(text)
	for _, word := range highValueWords {
		if strings.Contains(textLower, word) {
			importance++
		}
	}

	for _, marker := range []string{"1.", "2.", "•", "-", "✓"} {
		if strings.Contains(text, marker) {
			importance++
			break
		}
	}

	if importance > 10 {
		importance = 10
	}
	return importance
}
