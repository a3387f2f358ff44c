package normalize

import (
	"strings"
	"testing"
)

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	raw := "  First   line \r\n\r\n Second\tline \r trailing  "
	got := CleanText(raw)
	want := "First line\n\nSecond line\n\ntrailing"
	if got != want {
		t.Fatalf("unexpected clean text: %q want %q", got, want)
	}
}

func TestCanonicalIsLowercaseAndStable(t *testing.T) {
	t.Parallel()

	a := Canonical("  Fusion  Milestone ", "Net  Energy Gain\nConfirmed")
	b := Canonical("fusion milestone", "net energy gain confirmed")
	if a != b {
		t.Fatalf("canonical forms differ: %q vs %q", a, b)
	}
	if a != "fusion milestone net energy gain confirmed" {
		t.Fatalf("unexpected canonical form: %q", a)
	}
}

func TestBuildCountsWordsAndDetectsLanguage(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("researchers confirmed the reactor produced more energy than it consumed ", 3)
	doc := Build("Fusion Milestone", "Net energy gain confirmed", body)

	if doc.WordCount != 30 {
		t.Fatalf("unexpected word count: %d", doc.WordCount)
	}
	if doc.Language != "en" {
		t.Fatalf("expected english detection, got %q", doc.Language)
	}
	if doc.Canonical != "fusion milestone net energy gain confirmed" {
		t.Fatalf("unexpected canonical text: %q", doc.Canonical)
	}
}

func TestBuildEmptyBodyFallsBackToCanonical(t *testing.T) {
	t.Parallel()

	doc := Build("Fusion Milestone", "Net energy gain confirmed", "")
	if doc.Text != "" {
		t.Fatalf("expected empty body text, got %q", doc.Text)
	}
	if doc.WordCount != 6 {
		t.Fatalf("expected canonical word count 6, got %d", doc.WordCount)
	}
}

func TestBuildEmptyEverything(t *testing.T) {
	t.Parallel()

	doc := Build("", "", "")
	if doc.Canonical != "" || doc.WordCount != 0 {
		t.Fatalf("expected empty document, got %+v", doc)
	}
	if doc.Language != LanguageUnknown {
		t.Fatalf("expected unknown language, got %q", doc.Language)
	}
}

func TestDetectLanguageShortSample(t *testing.T) {
	t.Parallel()

	if got := DetectLanguage("ab 12"); got != LanguageUnknown {
		t.Fatalf("expected unknown for short sample, got %q", got)
	}
}

func TestExtractHTML(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Fusion Milestone</title></head><body>
<article>
<h1>Fusion Milestone</h1>
<p>Researchers confirmed the reactor produced more energy than it consumed during a sustained run.</p>
<p>The result has been independently replicated by two other laboratories this year.</p>
</article>
</body></html>`

	text, err := ExtractHTML(html, "https://example.org/fusion")
	if err != nil {
		t.Fatalf("extract html: %v", err)
	}
	if !strings.Contains(text, "more energy than it consumed") {
		t.Fatalf("expected body text extracted, got %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Fatalf("expected markup stripped, got %q", text)
	}
}
