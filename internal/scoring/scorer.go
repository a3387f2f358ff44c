// Package scoring turns an article plus its enrichment metadata into a final
// score, an inclusion decision, and a per-feature explanation of how the
// score came about.
package scoring

import (
	"fmt"
	"math"
	"time"
)

const weightSumTolerance = 0.01

// Weights are the four top-level feature weights. They must sum to 1.0
// within tolerance.
type Weights struct {
	SourceCredibility float64
	Recency           float64
	ContentQuality    float64
	Engagement        float64
}

type FreshnessConfig struct {
	HalfLifeHours float64
	MaxDecayHours float64
}

type ContentQualityConfig struct {
	TitleDivisor   float64
	SummaryDivisor float64
	EntityTarget   float64
	TitleWeight    float64
	SummaryWeight  float64
	EntityWeight   float64
}

type EngagementConfig struct {
	SentimentPositive float64
	SentimentNegative float64
	SentimentNeutral  float64
	SentimentFallback float64
	WordCountDivisor  float64
	ExternalWeight    float64
	LengthWeight      float64
}

type Config struct {
	Weights                Weights
	Freshness              FreshnessConfig
	ContentQuality         ContentQualityConfig
	Engagement             EngagementConfig
	DiversityPenaltyWeight float64
	DiversityMaxPenalty    float64
	MinimumScore           float64
}

// Default returns the production configuration. Values match the shipped
// scoring profile; environment configuration overrides them field by field.
func Default() Config {
	return Config{
		Weights: Weights{
			SourceCredibility: 0.25,
			Recency:           0.20,
			ContentQuality:    0.25,
			Engagement:        0.30,
		},
		Freshness: FreshnessConfig{
			HalfLifeHours: 18,
			MaxDecayHours: 168,
		},
		ContentQuality: ContentQualityConfig{
			TitleDivisor:   120,
			SummaryDivisor: 400,
			EntityTarget:   5,
			TitleWeight:    0.4,
			SummaryWeight:  0.4,
			EntityWeight:   0.2,
		},
		Engagement: EngagementConfig{
			SentimentPositive: 0.7,
			SentimentNegative: 0.6,
			SentimentNeutral:  0.5,
			SentimentFallback: 0.5,
			WordCountDivisor:  800,
			ExternalWeight:    0.6,
			LengthWeight:      0.4,
		},
		DiversityPenaltyWeight: 0.15,
		DiversityMaxPenalty:    0.3,
		MinimumScore:           0.3,
	}
}

func (c Config) Validate() error {
	if err := validateWeightSum("weights", c.Weights.SourceCredibility, c.Weights.Recency, c.Weights.ContentQuality, c.Weights.Engagement); err != nil {
		return err
	}
	if err := validateWeightSum("content_quality weights", c.ContentQuality.TitleWeight, c.ContentQuality.SummaryWeight, c.ContentQuality.EntityWeight); err != nil {
		return err
	}
	if err := validateWeightSum("engagement weights", c.Engagement.ExternalWeight, c.Engagement.LengthWeight); err != nil {
		return err
	}
	if c.Freshness.HalfLifeHours <= 0 {
		return fmt.Errorf("freshness half-life must be positive, got %v", c.Freshness.HalfLifeHours)
	}
	if c.Freshness.MaxDecayHours <= 0 {
		return fmt.Errorf("freshness max decay must be positive, got %v", c.Freshness.MaxDecayHours)
	}
	if c.ContentQuality.TitleDivisor <= 0 || c.ContentQuality.SummaryDivisor <= 0 || c.ContentQuality.EntityTarget <= 0 {
		return fmt.Errorf("content quality divisors must be positive")
	}
	if c.Engagement.WordCountDivisor <= 0 {
		return fmt.Errorf("engagement word count divisor must be positive, got %v", c.Engagement.WordCountDivisor)
	}
	if c.DiversityPenaltyWeight < 0 || c.DiversityPenaltyWeight > 1 {
		return fmt.Errorf("diversity penalty weight must be in [0,1], got %v", c.DiversityPenaltyWeight)
	}
	if c.DiversityMaxPenalty < 0 || c.DiversityMaxPenalty > 1 {
		return fmt.Errorf("diversity max penalty must be in [0,1], got %v", c.DiversityMaxPenalty)
	}
	if c.MinimumScore < 0 || c.MinimumScore > 1 {
		return fmt.Errorf("minimum score must be in [0,1], got %v", c.MinimumScore)
	}
	return nil
}

func validateWeightSum(label string, weights ...float64) error {
	var sum float64
	for _, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must each be in [0,1]", label)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%s must sum to 1.0 +/- %v, got %v", label, weightSumTolerance, sum)
	}
	return nil
}

// Enrichment is the NLP metadata attached upstream. Every field is optional;
// missing values degrade to neutral defaults.
type Enrichment struct {
	Topics          []string
	Sentiment       string
	Entities        []string
	EngagementScore *float64
}

// Input is everything the scorer reads about one article.
type Input struct {
	Title       string
	Summary     string
	PublishedAt *time.Time
	WordCount   int
	// SourceCredibility comes from the source registry; nil means the
	// source is unknown and the neutral default applies.
	SourceCredibility     *float64
	Enrichment            Enrichment
	DuplicationConfidence float64
}

// FeatureExplanation records one feature's raw value, its weight, and the
// product that entered the raw score.
type FeatureExplanation struct {
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Components are the four feature values, as persisted alongside the score.
type Components struct {
	SourceCredibility float64 `json:"source_credibility"`
	Recency           float64 `json:"recency"`
	ContentQuality    float64 `json:"content_quality"`
	Engagement        float64 `json:"engagement"`
}

// Result is the full scoring output, explanation included.
type Result struct {
	FinalScore    float64                       `json:"final_score"`
	ShouldInclude bool                          `json:"should_include"`
	RawScore      float64                       `json:"raw_score"`
	Components    Components                    `json:"components"`
	Features      map[string]FeatureExplanation `json:"features"`
	Penalty       float64                       `json:"penalty"`
	PenaltyReason string                        `json:"penalty_reason"`
}

type Scorer struct {
	cfg Config
}

// New validates the configuration and returns a scorer. A mis-weighted
// configuration is a construction error, never a silent renormalization.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

func (s *Scorer) MinimumScore() float64 {
	return s.cfg.MinimumScore
}

// Score computes the weighted feature blend and the duplication penalty for
// one article. It never fails: malformed article data falls back to neutral
// defaults.
func (s *Scorer) Score(in Input, now time.Time) Result {
	credibility := s.sourceCredibility(in)
	freshness := s.freshness(in.PublishedAt, now)
	quality := s.contentQuality(in)
	engagement := s.engagement(in)

	features := map[string]FeatureExplanation{
		"source_credibility": {Value: credibility, Weight: s.cfg.Weights.SourceCredibility, Contribution: credibility * s.cfg.Weights.SourceCredibility},
		"recency":            {Value: freshness, Weight: s.cfg.Weights.Recency, Contribution: freshness * s.cfg.Weights.Recency},
		"content_quality":    {Value: quality, Weight: s.cfg.Weights.ContentQuality, Contribution: quality * s.cfg.Weights.ContentQuality},
		"engagement":         {Value: engagement, Weight: s.cfg.Weights.Engagement, Contribution: engagement * s.cfg.Weights.Engagement},
	}

	var raw float64
	for _, feature := range features {
		raw += feature.Contribution
	}

	penalty, reason := s.diversityPenalty(in.DuplicationConfidence)
	final := clamp01(raw - penalty)

	return Result{
		FinalScore:    final,
		ShouldInclude: final >= s.cfg.MinimumScore,
		RawScore:      raw,
		Components: Components{
			SourceCredibility: credibility,
			Recency:           freshness,
			ContentQuality:    quality,
			Engagement:        engagement,
		},
		Features:      features,
		Penalty:       penalty,
		PenaltyReason: reason,
	}
}

func (s *Scorer) sourceCredibility(in Input) float64 {
	if in.SourceCredibility != nil {
		return clamp01(*in.SourceCredibility)
	}
	return 0.5
}

func (s *Scorer) freshness(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil || publishedAt.IsZero() {
		return 0.5
	}
	ageHours := now.Sub(publishedAt.UTC()).Hours()
	if ageHours <= 0 {
		return 1
	}
	if ageHours >= s.cfg.Freshness.MaxDecayHours {
		return 0
	}
	decay := math.Exp(-math.Ln2 * ageHours / s.cfg.Freshness.HalfLifeHours)
	return clamp01(decay)
}

func (s *Scorer) contentQuality(in Input) float64 {
	cfg := s.cfg.ContentQuality
	titleScore := math.Min(float64(len([]rune(in.Title)))/cfg.TitleDivisor, 1)
	summaryScore := math.Min(float64(len([]rune(in.Summary)))/cfg.SummaryDivisor, 1)
	richness := math.Min(float64(len(in.Enrichment.Entities))/cfg.EntityTarget, 1)

	quality := cfg.TitleWeight*titleScore + cfg.SummaryWeight*summaryScore + cfg.EntityWeight*richness
	return clamp01(quality)
}

func (s *Scorer) engagement(in Input) float64 {
	cfg := s.cfg.Engagement

	sentimentScore := cfg.SentimentFallback
	switch in.Enrichment.Sentiment {
	case "positive":
		sentimentScore = cfg.SentimentPositive
	case "negative":
		sentimentScore = cfg.SentimentNegative
	case "neutral":
		sentimentScore = cfg.SentimentNeutral
	}

	external := sentimentScore
	if in.Enrichment.EngagementScore != nil {
		external = clamp01(*in.Enrichment.EngagementScore)
	}

	wordCount := in.WordCount
	if wordCount <= 0 {
		wordCount = 400
	}
	lengthScore := math.Min(float64(wordCount)/cfg.WordCountDivisor, 1)

	return clamp01(cfg.ExternalWeight*external + cfg.LengthWeight*lengthScore)
}

func (s *Scorer) diversityPenalty(duplicationConfidence float64) (float64, string) {
	penalty := math.Min(s.cfg.DiversityPenaltyWeight*duplicationConfidence, s.cfg.DiversityMaxPenalty)
	if duplicationConfidence <= 0 {
		return penalty, "no penalty"
	}
	return penalty, fmt.Sprintf("penalized by %.2f due to duplication confidence %.2f", penalty, duplicationConfidence)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
