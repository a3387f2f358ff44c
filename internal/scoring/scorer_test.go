package scoring

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestNewRejectsBrokenWeights(t *testing.T) {
	t.Parallel()

	cases := []func(*Config){
		func(c *Config) { c.Weights.SourceCredibility = 0.5 },          // sum 1.25
		func(c *Config) { c.Weights.Engagement = -0.3 },                // negative
		func(c *Config) { c.ContentQuality.TitleWeight = 0.9 },         // inner sum 1.5
		func(c *Config) { c.Engagement.ExternalWeight = 0.1 },          // inner sum 0.5
		func(c *Config) { c.Freshness.HalfLifeHours = 0 },
		func(c *Config) { c.ContentQuality.SummaryDivisor = -1 },
		func(c *Config) { c.Engagement.WordCountDivisor = 0 },
		func(c *Config) { c.DiversityMaxPenalty = 1.5 },
		func(c *Config) { c.MinimumScore = -0.1 },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected construction error for %+v", i, cfg)
		}
	}
}

func TestNewAcceptsTolerantWeightSum(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Weights.SourceCredibility = 0.255 // sum 1.005, inside tolerance
	if _, err := New(cfg); err != nil {
		t.Fatalf("expected sum within tolerance to pass, got %v", err)
	}
}

func TestScoreHandComputedScenario(t *testing.T) {
	t.Parallel()

	scorer, err := New(Default())
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	published := now.Add(-18 * time.Hour) // exactly one half-life
	credibility := 0.9
	in := Input{
		Title:             strings.Repeat("a", 60),  // 60/120 = 0.5
		Summary:           strings.Repeat("b", 200), // 200/400 = 0.5
		PublishedAt:       &published,
		WordCount:         600, // 600/800 = 0.75
		SourceCredibility: &credibility,
		Enrichment: Enrichment{
			Sentiment: "positive",
			Entities:  []string{"mit", "nasa", "cern"}, // 3/5 = 0.6
		},
		DuplicationConfidence: 0.8,
	}

	result := scorer.Score(in, now)

	// quality = 0.4*0.5 + 0.4*0.5 + 0.2*0.6 = 0.52
	// engagement = 0.6*0.7 + 0.4*0.75 = 0.72
	// raw = 0.25*0.9 + 0.20*0.5 + 0.25*0.52 + 0.30*0.72 = 0.671
	// penalty = min(0.15*0.8, 0.3) = 0.12
	const tolerance = 1e-9
	assertNear := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > tolerance {
			t.Fatalf("%s: got %v want %v", name, got, want)
		}
	}
	assertNear("source credibility", result.Components.SourceCredibility, 0.9)
	assertNear("recency", result.Components.Recency, 0.5)
	assertNear("content quality", result.Components.ContentQuality, 0.52)
	assertNear("engagement", result.Components.Engagement, 0.72)
	assertNear("raw score", result.RawScore, 0.671)
	assertNear("penalty", result.Penalty, 0.12)
	assertNear("final score", result.FinalScore, 0.551)
	if !result.ShouldInclude {
		t.Fatalf("expected inclusion at final score %v", result.FinalScore)
	}
	if result.PenaltyReason == "no penalty" {
		t.Fatalf("expected a penalty explanation, got %q", result.PenaltyReason)
	}
}

func TestScoreEmptyInputUsesNeutralDefaults(t *testing.T) {
	t.Parallel()

	scorer, err := New(Default())
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	result := scorer.Score(Input{}, now)

	if result.Components.SourceCredibility != 0.5 {
		t.Fatalf("missing credibility must default to 0.5, got %v", result.Components.SourceCredibility)
	}
	if result.Components.Recency != 0.5 {
		t.Fatalf("missing publish date must default to 0.5, got %v", result.Components.Recency)
	}
	// Missing word count behaves like a 400-word article: 0.6*0.5 + 0.4*0.5.
	if math.Abs(result.Components.Engagement-0.5) > 1e-9 {
		t.Fatalf("expected neutral engagement 0.5, got %v", result.Components.Engagement)
	}
	if result.FinalScore < 0 || result.FinalScore > 1 {
		t.Fatalf("final score out of range: %v", result.FinalScore)
	}
	if result.Penalty != 0 || result.PenaltyReason != "no penalty" {
		t.Fatalf("expected no penalty, got %v (%q)", result.Penalty, result.PenaltyReason)
	}
}

func TestSourceCredibilityRegistryValue(t *testing.T) {
	t.Parallel()

	scorer, err := New(Default())
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	high := 0.9
	got := scorer.Score(Input{SourceCredibility: &high}, now).Components.SourceCredibility
	if got != 0.9 {
		t.Fatalf("expected registry credibility 0.9, got %v", got)
	}

	outOfRange := 1.7
	got = scorer.Score(Input{SourceCredibility: &outOfRange}, now).Components.SourceCredibility
	if got != 1 {
		t.Fatalf("expected credibility clamped to 1, got %v", got)
	}
}

func TestFreshnessBoundaries(t *testing.T) {
	t.Parallel()

	scorer, err := New(Default())
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	future := now.Add(2 * time.Hour)
	if got := scorer.Score(Input{PublishedAt: &future}, now).Components.Recency; got != 1 {
		t.Fatalf("future publish date must score 1.0, got %v", got)
	}

	stale := now.Add(-200 * time.Hour)
	if got := scorer.Score(Input{PublishedAt: &stale}, now).Components.Recency; got != 0 {
		t.Fatalf("articles past max decay must score 0, got %v", got)
	}

	edge := now.Add(-168 * time.Hour)
	if got := scorer.Score(Input{PublishedAt: &edge}, now).Components.Recency; got != 0 {
		t.Fatalf("articles at max decay must score 0, got %v", got)
	}
}

func TestDiversityPenaltyIsCapped(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.DiversityPenaltyWeight = 0.5
	scorer, err := New(cfg)
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	result := scorer.Score(Input{DuplicationConfidence: 1}, now)
	if result.Penalty != cfg.DiversityMaxPenalty {
		t.Fatalf("expected penalty capped at %v, got %v", cfg.DiversityMaxPenalty, result.Penalty)
	}
}

func TestScoreExplanationIsComplete(t *testing.T) {
	t.Parallel()

	scorer, err := New(Default())
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	result := scorer.Score(Input{Title: "fusion milestone"}, now)

	for _, name := range []string{"source_credibility", "recency", "content_quality", "engagement"} {
		feature, ok := result.Features[name]
		if !ok {
			t.Fatalf("missing feature explanation %q", name)
		}
		if math.Abs(feature.Contribution-feature.Value*feature.Weight) > 1e-12 {
			t.Fatalf("%s contribution %v does not match value %v * weight %v", name, feature.Contribution, feature.Value, feature.Weight)
		}
	}

	var sum float64
	for _, feature := range result.Features {
		sum += feature.Contribution
	}
	if math.Abs(sum-result.RawScore) > 1e-12 {
		t.Fatalf("feature contributions %v do not sum to raw score %v", sum, result.RawScore)
	}
}

func TestMinimumScoreGate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MinimumScore = 0.9
	scorer, err := New(cfg)
	if err != nil {
		t.Fatalf("construct scorer: %v", err)
	}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	result := scorer.Score(Input{}, now)
	if result.ShouldInclude {
		t.Fatalf("score %v must not pass a 0.9 gate", result.FinalScore)
	}
}
