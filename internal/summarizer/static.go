package summarizer

import (
	"context"
	"fmt"
	"strings"
)

const (
	staticMaxSections  = 4
	staticMaxKeyPoints = 5
	staticSectionRunes = 480
)

var keyPointMarkers = []string{
	"collect", "share", "sell", "third part", "retain", "cookie",
	"delete", "opt out", "opt-out", "consent", "track",
}

// StaticSummarizer builds a deterministic extractive summary without a
// model. It backs local development and tests.
type StaticSummarizer struct{}

func NewStaticSummarizer() *StaticSummarizer {
	return &StaticSummarizer{}
}

func (s *StaticSummarizer) Name() string {
	return "static"
}

func (s *StaticSummarizer) Summarize(ctx context.Context, req Request) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	paragraphs := splitParagraphs(text)
	sections := make([]Section, 0, staticMaxSections)
	for i, paragraph := range paragraphs {
		if i == staticMaxSections {
			break
		}
		title := "Overview"
		if i > 0 {
			title = fmt.Sprintf("Part %d", i+1)
		}
		sections = append(sections, Section{
			Title:   title,
			Content: clipText(paragraph, staticSectionRunes),
		})
	}

	sentences := splitSentences(text)
	keyPoints := make([]string, 0, staticMaxKeyPoints)
	for _, sentence := range sentences {
		if len(keyPoints) == staticMaxKeyPoints {
			break
		}
		lowered := strings.ToLower(sentence)
		for _, marker := range keyPointMarkers {
			if strings.Contains(lowered, marker) {
				keyPoints = append(keyPoints, sentence)
				break
			}
		}
	}
	if len(keyPoints) == 0 && len(sentences) > 0 {
		keyPoints = append(keyPoints, sentences[0])
	}

	return &Summary{
		Sections:  sections,
		KeyPoints: keyPoints,
		Sentiment: "neutral",
	}, nil
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if sentence := strings.Join(strings.Fields(current.String()), " "); sentence != "" {
			out = append(out, sentence)
		}
		current.Reset()
	}
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return out
}
