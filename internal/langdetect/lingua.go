package langdetect

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	lingua "github.com/pemistahl/lingua-go"
)

// Undetermined is the ISO 639-2 code stored when no language can be named.
const Undetermined = "und"

// sampleRunes caps how much of a long policy is fed to the detector.
const sampleRunes = 4000

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Detect returns the ISO 639-1 code of the dominant language in text, or
// Undetermined when the sample is too short or ambiguous.
func Detect(text string) string {
	sample := truncateRunes(strings.TrimSpace(text), sampleRunes)
	if sample == "" {
		return Undetermined
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return Undetermined
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return Undetermined
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return Undetermined
	}
	return code
}

// NormalizeCode reduces a tag such as "en-US" or "EN_gb" to its primary
// subtag. Blank or malformed input yields Undetermined.
func NormalizeCode(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.ReplaceAll(tag, "_", "-")
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		tag = tag[:dash]
	}
	if len(tag) < 2 || len(tag) > 3 {
		return Undetermined
	}
	for _, r := range tag {
		if r < 'a' || r > 'z' {
			return Undetermined
		}
	}
	return tag
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
