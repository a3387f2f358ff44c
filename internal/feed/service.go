// Package feed assembles the ranked feed: it pulls the scored, included
// articles, runs them through the reranker, and attaches the stored scoring
// explanation to every entry.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sift/internal/db"
	"horse.fit/sift/internal/rerank"
)

// candidateMultiplier controls how many top-scored articles feed the
// reranker per requested slot. Caps can skip items, so the pool has to be
// deeper than the feed.
const candidateMultiplier = 10

type Service struct {
	pool      *db.Pool
	logger    zerolog.Logger
	rerankCfg rerank.Config
}

func NewService(pool *db.Pool, logger zerolog.Logger, rerankCfg rerank.Config) (*Service, error) {
	if err := rerankCfg.Validate(); err != nil {
		return nil, fmt.Errorf("rerank config: %w", err)
	}
	return &Service{
		pool:      pool,
		logger:    logger,
		rerankCfg: rerankCfg,
	}, nil
}

// Entry is one feed item with its ranking explanation.
type Entry struct {
	ArticleID   int64           `json:"article_id"`
	ArticleUUID string          `json:"article_uuid"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Source      string          `json:"source"`
	Topics      []string        `json:"topics,omitempty"`
	FinalScore  float64         `json:"final_score"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	WhyRanked   json.RawMessage `json:"why_ranked,omitempty"`
}

// Feed returns at most limit reranked entries.
func (s *Service) Feed(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("feed service is not initialized")
	}
	if limit < 1 {
		return nil, fmt.Errorf("feed limit must be >= 1, got %d", limit)
	}

	candidates, err := s.loadCandidates(ctx, limit*candidateMultiplier)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	items := make([]rerank.Item, 0, len(candidates))
	for _, entry := range candidates {
		items = append(items, rerank.Item{
			ArticleID:   entry.ArticleID,
			Source:      entry.Source,
			Topics:      entry.Topics,
			FinalScore:  entry.FinalScore,
			PublishedAt: entry.PublishedAt,
		})
	}

	ranked := rerank.Rerank(items, limit, s.rerankCfg)

	byID := make(map[int64]Entry, len(candidates))
	for _, entry := range candidates {
		byID[entry.ArticleID] = entry
	}
	out := make([]Entry, 0, len(ranked))
	for _, item := range ranked {
		out = append(out, byID[item.ArticleID])
	}

	s.logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(out)).
		Int("limit", limit).
		Msg("feed assembled")
	return out, nil
}

func (s *Service) loadCandidates(ctx context.Context, poolSize int) ([]Entry, error) {
	const q = `
SELECT article_id, article_uuid, title, url, source_id,
       enrichment, final_score, published_at, score_components
FROM news.articles
WHERE should_include
ORDER BY final_score DESC, article_id DESC
LIMIT $1
`
	rows, err := s.pool.Query(ctx, q, poolSize)
	if err != nil {
		return nil, fmt.Errorf("query feed candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Entry
	for rows.Next() {
		var (
			entry      Entry
			enrichment []byte
			components []byte
		)
		if err := rows.Scan(&entry.ArticleID, &entry.ArticleUUID, &entry.Title, &entry.URL, &entry.Source,
			&enrichment, &entry.FinalScore, &entry.PublishedAt, &components); err != nil {
			return nil, fmt.Errorf("scan feed candidate: %w", err)
		}
		entry.Topics = decodeTopics(enrichment)
		if len(components) > 0 {
			entry.WhyRanked = json.RawMessage(components)
		}
		candidates = append(candidates, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed candidates: %w", err)
	}
	return candidates, nil
}

func decodeTopics(enrichment []byte) []string {
	if len(enrichment) == 0 {
		return nil
	}
	var payload struct {
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal(enrichment, &payload); err != nil {
		return nil
	}
	return payload.Topics
}
