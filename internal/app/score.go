package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/sift/internal/cli"
	"horse.fit/sift/internal/scoring"
)

func runScore(args []string) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	rescore := fs.Bool("rescore", false, "Rescore already-scored articles as well")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, logger, pool, err := bootstrap(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Score failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	scorer, err := scoring.New(scoringConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Score failed: %v\n", err)
		return 1
	}

	svc := scoring.NewService(pool, logger, scorer, cfg.EnrichmentCacheSize)
	result, err := svc.ScoreAll(ctx, *rescore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Score failed: %v\n", err)
		return 1
	}

	fmt.Printf("score_run_id=%d processed=%d included=%d rescore=%t\n",
		result.ScoreRunID, result.Processed, result.Included, *rescore)
	return 0
}
