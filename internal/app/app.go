// Package app implements the sift CLI. Every command bootstraps its own
// flag set, environment, configuration, and database pool.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sift/internal/cli"
	"horse.fit/sift/internal/cluster"
	"horse.fit/sift/internal/config"
	"horse.fit/sift/internal/db"
	"horse.fit/sift/internal/logging"
	"horse.fit/sift/internal/rerank"
	"horse.fit/sift/internal/scoring"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "score":
		return runScore(args[1:])
	case "recluster":
		return runRecluster(args[1:])
	case "feed":
		return runFeed(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "sift CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sift <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest      Validate, fingerprint, and store one article payload")
	fmt.Fprintln(os.Stderr, "  score       Score unscored articles (use --rescore for the full corpus)")
	fmt.Fprintln(os.Stderr, "  recluster   Rebuild every cluster assignment from scratch")
	fmt.Fprintln(os.Stderr, "  feed        Print the reranked feed")
	fmt.Fprintln(os.Stderr, "  process     Run score + feed in sequence")
	fmt.Fprintln(os.Stderr, "  run-once    Alias for process")
	fmt.Fprintln(os.Stderr, "  hash-token  Produce the bcrypt hash for an admin bearer token")
	fmt.Fprintln(os.Stderr, "  serve       Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"sift <command> -h\" for command-specific flags.")
}

// bootstrap loads the environment file, configuration, logger, and database
// pool shared by every database-backed command.
func bootstrap(ctx context.Context, envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, *db.Pool, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("initialize logger: %w", err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return nil, zerolog.Nop(), nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, logger, pool, nil
}

func clusterConfig(cfg *config.Config) cluster.Config {
	return cluster.Config{
		Threshold:       cfg.SimhashThreshold,
		CandidateWindow: cfg.SimhashCandidateWindow,
	}
}

func scoringConfig(cfg *config.Config) scoring.Config {
	return scoring.Config{
		Weights: scoring.Weights{
			SourceCredibility: cfg.WeightSourceCredibility,
			Recency:           cfg.WeightRecency,
			ContentQuality:    cfg.WeightContentQuality,
			Engagement:        cfg.WeightEngagement,
		},
		Freshness: scoring.FreshnessConfig{
			HalfLifeHours: cfg.FreshnessHalfLifeHours,
			MaxDecayHours: cfg.FreshnessMaxDecayHours,
		},
		ContentQuality: scoring.ContentQualityConfig{
			TitleDivisor:   cfg.QualityTitleDivisor,
			SummaryDivisor: cfg.QualitySummaryDivisor,
			EntityTarget:   cfg.QualityEntityTarget,
			TitleWeight:    cfg.QualityTitleWeight,
			SummaryWeight:  cfg.QualitySummaryWeight,
			EntityWeight:   cfg.QualityEntityWeight,
		},
		Engagement: scoring.EngagementConfig{
			SentimentPositive: cfg.SentimentPositive,
			SentimentNegative: cfg.SentimentNegative,
			SentimentNeutral:  cfg.SentimentNeutral,
			SentimentFallback: cfg.SentimentFallback,
			WordCountDivisor:  cfg.EngagementWordDivisor,
			ExternalWeight:    cfg.EngagementExternalWeight,
			LengthWeight:      cfg.EngagementLengthWeight,
		},
		DiversityPenaltyWeight: cfg.DiversityPenaltyWeight,
		DiversityMaxPenalty:    cfg.DiversityMaxPenalty,
		MinimumScore:           cfg.MinimumScore,
	}
}

func rerankConfig(cfg *config.Config) rerank.Config {
	return rerank.Config{
		Seed:                cfg.RerankerSeed,
		SourceCapPercentage: cfg.SourceCapPercentage,
		TopicCapPercentage:  cfg.TopicCapPercentage,
	}
}
