package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/sift/internal/cli"
	"horse.fit/sift/internal/cluster"
)

func runRecluster(args []string) int {
	fs := flag.NewFlagSet("recluster", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")

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
		fmt.Fprintf(os.Stderr, "Recluster failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	clusters, err := cluster.NewService(pool, logger, clusterConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recluster failed: %v\n", err)
		return 1
	}

	result, err := clusters.ReclusterAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recluster failed: %v\n", err)
		return 1
	}

	fmt.Printf("processed=%d clusters=%d\n", result.Processed, result.Clusters)
	return 0
}
