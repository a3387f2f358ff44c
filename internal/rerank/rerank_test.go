package rerank

import (
	"testing"
	"time"
)

func defaultConfig() Config {
	return Config{
		Seed:                1337,
		SourceCapPercentage: 0.5,
		TopicCapPercentage:  0.6,
	}
}

func TestRerankDeterministicForSeed(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ArticleID: 1, Source: "nature", FinalScore: 0.9},
		{ArticleID: 2, Source: "arxiv", FinalScore: 0.9},
		{ArticleID: 3, Source: "quanta", FinalScore: 0.9},
		{ArticleID: 4, Source: "wired", FinalScore: 0.9},
	}

	first := Rerank(items, 4, defaultConfig())
	second := Rerank(items, 4, defaultConfig())
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ArticleID != second[i].ArticleID {
			t.Fatalf("position %d differs: %d vs %d", i, first[i].ArticleID, second[i].ArticleID)
		}
	}
}

func TestRerankOrdersByScoreThenDateThenSource(t *testing.T) {
	t.Parallel()

	newer := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	items := []Item{
		{ArticleID: 1, Source: "aaa", FinalScore: 0.5, PublishedAt: &older},
		{ArticleID: 2, Source: "aaa", FinalScore: 0.8, PublishedAt: &older},
		{ArticleID: 3, Source: "bbb", FinalScore: 0.5, PublishedAt: &newer},
		{ArticleID: 4, Source: "zzz", FinalScore: 0.5, PublishedAt: &older},
	}

	out := Rerank(items, 4, defaultConfig())
	got := make([]int64, 0, len(out))
	for _, item := range out {
		got = append(got, item.ArticleID)
	}

	// 2 leads on score; 3 beats the 0.5 group on date; z beats a on the
	// source tie-break.
	want := []int64{2, 3, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", got, want)
		}
	}
}

func TestRerankSourceCap(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ArticleID: 1, Source: "source_a", FinalScore: 0.95},
		{ArticleID: 2, Source: "source_a", FinalScore: 0.90},
		{ArticleID: 3, Source: "source_a", FinalScore: 0.85},
		{ArticleID: 4, Source: "source_b", FinalScore: 0.40},
		{ArticleID: 5, Source: "source_c", FinalScore: 0.35},
	}

	// limit 4, cap 0.5: at most 2 per source.
	out := Rerank(items, 4, defaultConfig())
	if len(out) != 4 {
		t.Fatalf("expected 4 items, got %d", len(out))
	}
	perSource := make(map[string]int)
	for _, item := range out {
		perSource[item.Source]++
	}
	if perSource["source_a"] != 2 {
		t.Fatalf("expected source_a capped at 2, got %d", perSource["source_a"])
	}
	// The skipped third source_a article must not block the lower-ranked
	// sources from filling the feed.
	if perSource["source_b"] != 1 || perSource["source_c"] != 1 {
		t.Fatalf("expected skip to admit later sources, got %v", perSource)
	}
}

func TestRerankTopicCap(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ArticleID: 1, Source: "a", Topics: []string{"fusion"}, FinalScore: 0.9},
		{ArticleID: 2, Source: "b", Topics: []string{"fusion"}, FinalScore: 0.8},
		{ArticleID: 3, Source: "c", Topics: []string{"fusion"}, FinalScore: 0.7},
		{ArticleID: 4, Source: "d", Topics: []string{"genomics"}, FinalScore: 0.1},
	}

	// limit 3, topic cap floor(3*0.6) = 1: a single fusion article.
	out := Rerank(items, 3, defaultConfig())
	fusion := 0
	for _, item := range out {
		for _, topic := range item.Topics {
			if topic == "fusion" {
				fusion++
			}
		}
	}
	if fusion != 1 {
		t.Fatalf("expected one fusion article, got %d in %v", fusion, out)
	}
}

func TestRerankEmptySourceSharesOneCap(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ArticleID: 1, Source: "", FinalScore: 0.95},
		{ArticleID: 2, Source: "", FinalScore: 0.90},
		{ArticleID: 3, Source: "", FinalScore: 0.85},
		{ArticleID: 4, Source: "", FinalScore: 0.80},
		{ArticleID: 5, Source: "", FinalScore: 0.75},
	}

	// limit 4, cap 0.5: sourceless items are capped at 2 as one group, not
	// exempted from the cap.
	out := Rerank(items, 4, defaultConfig())
	if len(out) != 2 {
		t.Fatalf("expected 2 items from the unnamed source group, got %d", len(out))
	}
}

func TestRerankCapFloorIsOne(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ArticleID: 1, Source: "only", FinalScore: 0.9},
		{ArticleID: 2, Source: "only", FinalScore: 0.8},
	}

	// limit 1, cap floor(1*0.5) = 0 floored to 1.
	out := Rerank(items, 1, defaultConfig())
	if len(out) != 1 || out[0].ArticleID != 1 {
		t.Fatalf("expected single top item, got %v", out)
	}
}

func TestRerankEmptyAndZeroLimit(t *testing.T) {
	t.Parallel()

	if out := Rerank(nil, 10, defaultConfig()); len(out) != 0 {
		t.Fatalf("expected empty result for empty input, got %v", out)
	}
	items := []Item{{ArticleID: 1, FinalScore: 0.9}}
	if out := Rerank(items, 0, defaultConfig()); len(out) != 0 {
		t.Fatalf("expected empty result for zero limit, got %v", out)
	}
}

func TestRerankNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	var items []Item
	for i := int64(1); i <= 50; i++ {
		items = append(items, Item{ArticleID: i, Source: "s", FinalScore: float64(i) / 50})
	}
	out := Rerank(items, 10, defaultConfig())
	if len(out) > 10 {
		t.Fatalf("limit exceeded: %d", len(out))
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	for _, cfg := range []Config{
		{Seed: 1, SourceCapPercentage: 0, TopicCapPercentage: 0.6},
		{Seed: 1, SourceCapPercentage: 0.5, TopicCapPercentage: 1.5},
	} {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}
