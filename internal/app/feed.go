package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/sift/internal/cli"
	"horse.fit/sift/internal/feed"
)

func runFeed(args []string) int {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 0, "Feed size (defaults to SIFT_FEED_LIMIT)")
	asJSON := fs.Bool("json", false, "Print the feed as JSON")

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
		fmt.Fprintf(os.Stderr, "Feed failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	feeds, err := feed.NewService(pool, logger, rerankConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feed failed: %v\n", err)
		return 1
	}

	feedLimit := *limit
	if feedLimit <= 0 {
		feedLimit = cfg.FeedLimit
	}

	entries, err := feeds.Feed(ctx, feedLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feed failed: %v\n", err)
		return 1
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			fmt.Fprintf(os.Stderr, "Feed failed: %v\n", err)
			return 1
		}
		return 0
	}

	for i, entry := range entries {
		fmt.Printf("%2d. %.4f %-24s %s\n", i+1, entry.FinalScore, entry.Source, entry.Title)
	}
	if len(entries) == 0 {
		fmt.Println("feed is empty; run \"sift score\" first")
	}
	return 0
}
