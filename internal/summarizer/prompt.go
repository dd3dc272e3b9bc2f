package summarizer

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a careful privacy analyst. You summarize privacy policies and terms of service for ordinary readers."

func buildPrompt(req Request) string {
	var sb strings.Builder
	company := strings.TrimSpace(req.CompanyName)
	if company == "" {
		company = "the company"
	}
	fmt.Fprintf(&sb, "Summarize the following policy published by %s.\n", company)
	if lang := strings.TrimSpace(req.Language); lang != "" && lang != "und" {
		fmt.Fprintf(&sb, "The policy is written in ISO 639-1 language %q. Answer in that language.\n", lang)
	}
	sb.WriteString(`
Respond in JSON with this exact structure:
{
  "sections": [{"title": "Data collected", "content": "2-4 sentences"}],
  "key_points": ["short point", "short point"],
  "sentiment": "positive | neutral | negative | mixed"
}

Cover data collection, sharing with third parties, retention, and user rights when the policy mentions them.
Respond ONLY with valid JSON, no markdown fences or additional text.

--- Policy ---
`)
	sb.WriteString(clipText(req.Text, MaxInputRunes))
	return sb.String()
}
