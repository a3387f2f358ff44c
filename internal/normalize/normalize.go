// Package normalize prepares raw article content for fingerprinting and
// scoring: HTML extraction, whitespace cleanup, the lowercase canonical text
// the signature is computed over, language detection, and word counts.
package normalize

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode"

	readability "codeberg.org/readeck/go-readability/v2"
	lingua "github.com/pemistahl/lingua-go"
)

// LanguageUnknown is stored when detection cannot commit to a language.
const LanguageUnknown = "und"

// Document is the normalized view of one article's content.
type Document struct {
	// Text is the cleaned body text, paragraph breaks preserved.
	Text string
	// Canonical is the lowercase title-plus-summary text that fingerprints
	// are computed over.
	Canonical string
	Language  string
	WordCount int
}

// Build normalizes already-plain content. Body may be empty; the canonical
// text only depends on title and summary so late body fetches never change
// an article's fingerprint.
func Build(title, summary, body string) Document {
	text := CleanText(body)
	canonical := Canonical(title, summary)

	counted := text
	if counted == "" {
		counted = canonical
	}

	sample := text
	if sample == "" {
		sample = strings.TrimSpace(title + " " + summary)
	}

	return Document{
		Text:      text,
		Canonical: canonical,
		Language:  DetectLanguage(sample),
		WordCount: len(strings.Fields(counted)),
	}
}

// ExtractHTML pulls readable body text out of raw HTML.
func ExtractHTML(rawHTML, pageURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	return text, nil
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// Canonical is the deterministic fingerprint input: cleaned, lowercased
// title and summary joined by a single space.
func Canonical(title, summary string) string {
	joined := strings.TrimSpace(CleanText(title) + " " + CleanText(summary))
	return strings.ToLower(strings.Join(strings.Fields(joined), " "))
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectLanguage returns the ISO 639-1 code of the sample, or LanguageUnknown
// when the sample is too short or ambiguous.
func DetectLanguage(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return LanguageUnknown
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return LanguageUnknown
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return LanguageUnknown
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return LanguageUnknown
	}
	return code
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
