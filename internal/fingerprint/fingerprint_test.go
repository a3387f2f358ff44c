package fingerprint

import (
	"strings"
	"testing"
)

func TestSimhash64Deterministic(t *testing.T) {
	t.Parallel()

	text := "quantum computing milestone reached by research team"
	first, ok := Simhash64(text)
	if !ok {
		t.Fatalf("expected signature for non-empty text")
	}
	second, ok := Simhash64(text)
	if !ok {
		t.Fatalf("expected signature on recompute")
	}
	if first != second {
		t.Fatalf("simhash not deterministic: %x vs %x", first, second)
	}
	if HammingDistance(first, second) != 0 {
		t.Fatalf("expected zero distance between identical signatures")
	}
}

func TestSimhash64EmptyInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\t\n", "!!! --- ..."} {
		if sig, ok := Simhash64(text); ok || sig != 0 {
			t.Fatalf("expected no signature for %q, got %x", text, sig)
		}
	}
}

func TestSimilarTextsHaveCloseSignatures(t *testing.T) {
	t.Parallel()

	base := "researchers publish peer reviewed study on deep sea microbial life and carbon cycling in the pacific"
	variant := "researchers publish peer reviewed study on deep sea microbial life and carbon cycling in the atlantic"
	unrelated := "city council approves new tram line budget after months of political negotiation over transit funding"

	sigBase, _ := Simhash64(base)
	sigVariant, _ := Simhash64(variant)
	sigUnrelated, _ := Simhash64(unrelated)

	near := HammingDistance(sigBase, sigVariant)
	far := HammingDistance(sigBase, sigUnrelated)
	if near >= far {
		t.Fatalf("expected similar texts closer than unrelated: near=%d far=%d", near, far)
	}
}

func TestHammingDistanceBounds(t *testing.T) {
	t.Parallel()

	if got := HammingDistance(0, ^uint64(0)); got != 64 {
		t.Fatalf("expected max distance 64, got %d", got)
	}
	if got := HammingDistance(0b1010, 0b0101); got != 4 {
		t.Fatalf("unexpected distance: got %d want 4", got)
	}
}

func TestConfidenceMonotonicAndBounded(t *testing.T) {
	t.Parallel()

	if got := Confidence(0); got != 1.0 {
		t.Fatalf("expected confidence 1.0 at distance 0, got %f", got)
	}
	if got := Confidence(64); got != 0.0 {
		t.Fatalf("expected confidence 0.0 at distance 64, got %f", got)
	}
	if got := Confidence(100); got != 0.0 {
		t.Fatalf("expected confidence clamped to 0.0 beyond 64, got %f", got)
	}

	prev := 1.1
	for d := 0; d <= 64; d++ {
		c := Confidence(d)
		if c < 0 || c > 1 {
			t.Fatalf("confidence out of [0,1] at distance %d: %f", d, c)
		}
		if c > prev {
			t.Fatalf("confidence increased at distance %d: %f > %f", d, c, prev)
		}
		prev = c
	}
}

func TestContentHashHex(t *testing.T) {
	t.Parallel()

	first := ContentHashHex("mit unveils ai breakthrough")
	second := ContentHashHex("mit unveils ai breakthrough")
	other := ContentHashHex("mit unveils ai breakthrough ")
	if first != second {
		t.Fatalf("content hash not deterministic")
	}
	if first == other {
		t.Fatalf("distinct texts must not share a content hash")
	}
	if len(first) != 64 || strings.ToLower(first) != first {
		t.Fatalf("expected lowercase hex sha256, got %q", first)
	}
}

func TestPrefixUsesTopBits(t *testing.T) {
	t.Parallel()

	if got := Prefix(0xABCD_1234_5678_9ABC); got != 0xABCD {
		t.Fatalf("unexpected prefix: got %04x want abcd", got)
	}
	if got := Prefix(0); got != 0 {
		t.Fatalf("expected zero prefix for zero signature, got %04x", got)
	}
}

func TestComputeEmptyText(t *testing.T) {
	t.Parallel()

	fp := Compute("")
	if fp.HasSimhash || fp.Simhash != 0 {
		t.Fatalf("expected no signature for empty text")
	}
	if fp.ContentHash == "" {
		t.Fatalf("content hash must still be present for empty text")
	}
}
