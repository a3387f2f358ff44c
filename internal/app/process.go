package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/sift/internal/cli"
	"horse.fit/sift/internal/feed"
	"horse.fit/sift/internal/scoring"
)

// runProcess scores whatever is pending and prints the resulting feed, the
// whole batch path in one invocation.
func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")
	rescore := fs.Bool("rescore", false, "Rescore already-scored articles as well")
	limit := fs.Int("limit", 0, "Feed size (defaults to SIFT_FEED_LIMIT)")

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
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	scorer, err := scoring.New(scoringConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}

	scores := scoring.NewService(pool, logger, scorer, cfg.EnrichmentCacheSize)
	scoreResult, err := scores.ScoreAll(ctx, *rescore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process failed at scoring: %v\n", err)
		return 1
	}
	fmt.Printf("score_run_id=%d processed=%d included=%d\n",
		scoreResult.ScoreRunID, scoreResult.Processed, scoreResult.Included)

	feeds, err := feed.NewService(pool, logger, rerankConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}

	feedLimit := *limit
	if feedLimit <= 0 {
		feedLimit = cfg.FeedLimit
	}

	entries, err := feeds.Feed(ctx, feedLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process failed at feed: %v\n", err)
		return 1
	}
	for i, entry := range entries {
		fmt.Printf("%2d. %.4f %-24s %s\n", i+1, entry.FinalScore, entry.Source, entry.Title)
	}
	return 0
}
