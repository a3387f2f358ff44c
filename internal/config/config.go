package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"SIFT_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"SIFT_DB_MAX_CONNS" default:"8"`

	// Bcrypt hash of the bearer token accepted on admin endpoints.
	// Empty disables the admin surface entirely.
	AdminTokenHash string `envconfig:"SIFT_ADMIN_TOKEN_HASH" default:""`

	SimhashThreshold       int `envconfig:"SIFT_SIMHASH_THRESHOLD" default:"10"`
	SimhashCandidateWindow int `envconfig:"SIFT_SIMHASH_CANDIDATE_WINDOW" default:"500"`

	WeightSourceCredibility float64 `envconfig:"SIFT_WEIGHT_SOURCE_CREDIBILITY" default:"0.25"`
	WeightRecency           float64 `envconfig:"SIFT_WEIGHT_RECENCY" default:"0.20"`
	WeightContentQuality    float64 `envconfig:"SIFT_WEIGHT_CONTENT_QUALITY" default:"0.25"`
	WeightEngagement        float64 `envconfig:"SIFT_WEIGHT_ENGAGEMENT" default:"0.30"`

	FreshnessHalfLifeHours float64 `envconfig:"SIFT_FRESHNESS_HALF_LIFE_HOURS" default:"18"`
	FreshnessMaxDecayHours float64 `envconfig:"SIFT_FRESHNESS_MAX_DECAY_HOURS" default:"168"`

	QualityTitleDivisor   float64 `envconfig:"SIFT_QUALITY_TITLE_DIVISOR" default:"120"`
	QualitySummaryDivisor float64 `envconfig:"SIFT_QUALITY_SUMMARY_DIVISOR" default:"400"`
	QualityEntityTarget   float64 `envconfig:"SIFT_QUALITY_ENTITY_TARGET" default:"5"`
	QualityTitleWeight    float64 `envconfig:"SIFT_QUALITY_TITLE_WEIGHT" default:"0.4"`
	QualitySummaryWeight  float64 `envconfig:"SIFT_QUALITY_SUMMARY_WEIGHT" default:"0.4"`
	QualityEntityWeight   float64 `envconfig:"SIFT_QUALITY_ENTITY_WEIGHT" default:"0.2"`

	SentimentPositive        float64 `envconfig:"SIFT_SENTIMENT_POSITIVE" default:"0.7"`
	SentimentNegative        float64 `envconfig:"SIFT_SENTIMENT_NEGATIVE" default:"0.6"`
	SentimentNeutral         float64 `envconfig:"SIFT_SENTIMENT_NEUTRAL" default:"0.5"`
	SentimentFallback        float64 `envconfig:"SIFT_SENTIMENT_FALLBACK" default:"0.5"`
	EngagementWordDivisor    float64 `envconfig:"SIFT_ENGAGEMENT_WORD_DIVISOR" default:"800"`
	EngagementExternalWeight float64 `envconfig:"SIFT_ENGAGEMENT_EXTERNAL_WEIGHT" default:"0.6"`
	EngagementLengthWeight   float64 `envconfig:"SIFT_ENGAGEMENT_LENGTH_WEIGHT" default:"0.4"`

	DiversityPenaltyWeight float64 `envconfig:"SIFT_DIVERSITY_PENALTY_WEIGHT" default:"0.15"`
	DiversityMaxPenalty    float64 `envconfig:"SIFT_DIVERSITY_MAX_PENALTY" default:"0.3"`
	MinimumScore           float64 `envconfig:"SIFT_MINIMUM_SCORE" default:"0.3"`

	RerankerSeed        int64   `envconfig:"SIFT_RERANKER_SEED" default:"1337"`
	SourceCapPercentage float64 `envconfig:"SIFT_SOURCE_CAP_PERCENTAGE" default:"0.5"`
	TopicCapPercentage  float64 `envconfig:"SIFT_TOPIC_CAP_PERCENTAGE" default:"0.6"`
	FeedLimit           int     `envconfig:"SIFT_FEED_LIMIT" default:"10"`

	EnrichmentCacheSize int `envconfig:"SIFT_ENRICHMENT_CACHE_SIZE" default:"512"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("SIFT_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("SIFT_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("SIFT_DB_MIN_CONNS (%d) cannot exceed SIFT_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SimhashThreshold < 0 || c.SimhashThreshold > 64 {
		return fmt.Errorf("SIFT_SIMHASH_THRESHOLD must be between 0 and 64")
	}
	if c.SimhashCandidateWindow < 1 {
		return fmt.Errorf("SIFT_SIMHASH_CANDIDATE_WINDOW must be >= 1")
	}
	if c.SourceCapPercentage <= 0 || c.SourceCapPercentage > 1 {
		return fmt.Errorf("SIFT_SOURCE_CAP_PERCENTAGE must be in (0,1]")
	}
	if c.TopicCapPercentage <= 0 || c.TopicCapPercentage > 1 {
		return fmt.Errorf("SIFT_TOPIC_CAP_PERCENTAGE must be in (0,1]")
	}
	if c.FeedLimit < 1 {
		return fmt.Errorf("SIFT_FEED_LIMIT must be >= 1")
	}
	if c.EnrichmentCacheSize < 1 {
		return fmt.Errorf("SIFT_ENRICHMENT_CACHE_SIZE must be >= 1")
	}
	// Weight-group sums and divisors are validated where the scorer is
	// constructed, so a broken scoring configuration stops the run there.
	return nil
}
