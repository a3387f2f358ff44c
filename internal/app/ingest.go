package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/sift/internal/cli"
	"horse.fit/sift/internal/cluster"
	"horse.fit/sift/internal/ingest"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	payload := fs.String("payload", "", "Article payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, logger, pool, err := bootstrap(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	clusters, err := cluster.NewService(pool, logger, clusterConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	svc := ingest.NewService(pool, logger, clusters)
	result, err := svc.Ingest(ctx, payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	if result.Duplicate {
		fmt.Printf("article_id=%d duplicate=true duplicate_of=%d\n", result.ArticleID, result.DuplicateOf)
		return 0
	}
	fmt.Printf("article_id=%d cluster_id=%s founded=%t confidence=%.4f\n",
		result.ArticleID, result.ClusterID, result.Founded, result.Confidence)
	return 0
}

// loadJSONInput resolves a JSON document from an inline flag or a file flag,
// the file taking precedence, and checks it parses.
func loadJSONInput(inline, file, label string) (json.RawMessage, error) {
	raw := strings.TrimSpace(inline)
	if strings.TrimSpace(file) != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", label, err)
		}
		raw = strings.TrimSpace(string(content))
	}
	if raw == "" {
		return nil, fmt.Errorf("%s is required", label)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("%s is not valid JSON", label)
	}
	return json.RawMessage(raw), nil
}
