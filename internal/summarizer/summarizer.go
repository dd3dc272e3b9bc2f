// Package summarizer turns canonical policy text into a structured summary
// through a pluggable model provider.
package summarizer

import (
	"context"
	"strings"
	"unicode/utf8"
)

// MaxInputRunes caps the policy text sent to remote models.
const MaxInputRunes = 60000

// Section is one titled block of the summary.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Summary is the validated model output.
type Summary struct {
	Sections  []Section `json:"sections"`
	KeyPoints []string  `json:"key_points"`
	Sentiment string    `json:"sentiment"`
}

// Request carries the canonical text plus hints.
type Request struct {
	Text        string
	Language    string
	CompanyName string
}

// Summarizer is one model backend.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, req Request) (*Summary, error)
}

// ModelNamer is implemented by providers backed by a named model.
type ModelNamer interface {
	ModelName() string
}

// ModelOf returns the model name of s, or "" when it has none.
func ModelOf(s Summarizer) string {
	if namer, ok := s.(ModelNamer); ok {
		return namer.ModelName()
	}
	return ""
}

func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit]))
}
