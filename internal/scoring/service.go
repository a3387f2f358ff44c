package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sift/internal/db"
	"horse.fit/sift/internal/enrichcache"
	"horse.fit/sift/internal/globaltime"
)

const defaultBatchSize = 200

// Service runs batch scoring over stored articles. Each invocation is
// recorded as a row in news.score_runs.
type Service struct {
	pool      *db.Pool
	logger    zerolog.Logger
	scorer    *Scorer
	cache     *enrichcache.Cache[Enrichment]
	batchSize int
}

func NewService(pool *db.Pool, logger zerolog.Logger, scorer *Scorer, cacheSize int) *Service {
	return &Service{
		pool:      pool,
		logger:    logger,
		scorer:    scorer,
		cache:     enrichcache.New[Enrichment](cacheSize),
		batchSize: defaultBatchSize,
	}
}

type RunResult struct {
	ScoreRunID int64
	Processed  int
	Included   int
}

// ScoreAll scores every unscored article. With rescore set it also revisits
// articles scored before the run started, so configuration changes can be
// re-applied to the whole corpus without looping on fresh rows.
func (s *Service) ScoreAll(ctx context.Context, rescore bool) (RunResult, error) {
	if s == nil || s.pool == nil {
		return RunResult{}, fmt.Errorf("scoring service is not initialized")
	}

	startedAt := globaltime.UTC()
	runID, err := s.insertRun(ctx, startedAt)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{ScoreRunID: runID}
	for {
		processed, included, err := s.scoreBatch(ctx, rescore, startedAt)
		if err != nil {
			s.finishRun(ctx, runID, result, err)
			return result, err
		}
		if processed == 0 {
			break
		}
		result.Processed += processed
		result.Included += included
	}

	s.finishRun(ctx, runID, result, nil)
	s.logger.Info().
		Int64("score_run_id", runID).
		Int("processed", result.Processed).
		Int("included", result.Included).
		Bool("rescore", rescore).
		Msg("scoring run complete")
	return result, nil
}

func (s *Service) insertRun(ctx context.Context, startedAt time.Time) (int64, error) {
	const q = `
INSERT INTO news.score_runs (started_at, minimum_score)
VALUES ($1, $2)
RETURNING score_run_id
`
	var runID int64
	if err := s.pool.QueryRow(ctx, q, startedAt, s.scorer.MinimumScore()).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert score run: %w", err)
	}
	return runID, nil
}

func (s *Service) finishRun(ctx context.Context, runID int64, result RunResult, runErr error) {
	const q = `
UPDATE news.score_runs
SET finished_at = $1,
    processed = $2,
    included = $3,
    error_message = $4
WHERE score_run_id = $5
`
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	if _, err := s.pool.Exec(ctx, q, globaltime.UTC(), result.Processed, result.Included, errMsg, runID); err != nil {
		s.logger.Error().Err(err).Int64("score_run_id", runID).Msg("failed to finalize score run")
	}
}

// scoredRow is one claimed article plus its source credibility.
type scoredRow struct {
	articleID             int64
	contentHash           string
	title                 string
	summary               *string
	wordCount             int
	publishedAt           *time.Time
	duplicationConfidence float64
	enrichment            []byte
	sourceCredibility     *float64
}

const claimUnscoredQuery = `
SELECT a.article_id, a.content_hash, a.title, a.summary, a.word_count,
       a.published_at, a.duplication_confidence, a.enrichment, s.credibility
FROM news.articles a
LEFT JOIN news.sources s ON s.source_id = a.source_id
WHERE a.scored_at IS NULL
ORDER BY a.article_id
LIMIT $1
FOR UPDATE OF a SKIP LOCKED
`

const claimRescoreQuery = `
SELECT a.article_id, a.content_hash, a.title, a.summary, a.word_count,
       a.published_at, a.duplication_confidence, a.enrichment, s.credibility
FROM news.articles a
LEFT JOIN news.sources s ON s.source_id = a.source_id
WHERE a.scored_at IS NULL OR a.scored_at < $2
ORDER BY a.article_id
LIMIT $1
FOR UPDATE OF a SKIP LOCKED
`

func (s *Service) scoreBatch(ctx context.Context, rescore bool, startedAt time.Time) (int, int, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("begin scoring tx: %w", err)
	}

	processed, included, err := s.scoreBatchTx(ctx, tx, rescore, startedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, 0, fmt.Errorf("commit scoring tx: %w", err)
	}
	return processed, included, nil
}

func (s *Service) scoreBatchTx(ctx context.Context, tx db.Tx, rescore bool, startedAt time.Time) (int, int, error) {
	var (
		rows *db.Rows
		err  error
	)
	if rescore {
		rows, err = tx.Query(ctx, claimRescoreQuery, s.batchSize, startedAt)
	} else {
		rows, err = tx.Query(ctx, claimUnscoredQuery, s.batchSize)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("claim articles for scoring: %w", err)
	}

	var claimed []scoredRow
	for rows.Next() {
		var r scoredRow
		if err := rows.Scan(&r.articleID, &r.contentHash, &r.title, &r.summary, &r.wordCount,
			&r.publishedAt, &r.duplicationConfidence, &r.enrichment, &r.sourceCredibility); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan article for scoring: %w", err)
		}
		claimed = append(claimed, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, fmt.Errorf("iterate articles for scoring: %w", err)
	}
	rows.Close()

	now := globaltime.UTC()
	var included int
	for _, r := range claimed {
		result := s.scorer.Score(s.buildInput(r), now)
		if result.ShouldInclude {
			included++
		}

		components, err := json.Marshal(result)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal score components article_id=%d: %w", r.articleID, err)
		}

		const update = `
UPDATE news.articles
SET final_score = $1,
    score_components = $2,
    should_include = $3,
    scored_at = $4,
    updated_at = now()
WHERE article_id = $5
`
		if _, err := tx.Exec(ctx, update, result.FinalScore, components, result.ShouldInclude, now, r.articleID); err != nil {
			return 0, 0, fmt.Errorf("update score article_id=%d: %w", r.articleID, err)
		}
	}

	return len(claimed), included, nil
}

func (s *Service) buildInput(r scoredRow) Input {
	var summary string
	if r.summary != nil {
		summary = *r.summary
	}
	return Input{
		Title:                 r.title,
		Summary:               summary,
		PublishedAt:           r.publishedAt,
		WordCount:             r.wordCount,
		SourceCredibility:     r.sourceCredibility,
		Enrichment:            s.decodeEnrichment(r.contentHash, r.enrichment),
		DuplicationConfidence: r.duplicationConfidence,
	}
}

// decodeEnrichment parses the stored payload, caching by content hash so
// repeated rescore passes skip the JSON work. A malformed payload scores as
// if no enrichment existed.
func (s *Service) decodeEnrichment(contentHash string, raw []byte) Enrichment {
	if len(raw) == 0 {
		return Enrichment{}
	}
	if cached, ok := s.cache.Get(contentHash); ok {
		return cached
	}

	var payload struct {
		Topics          []string `json:"topics"`
		Sentiment       string   `json:"sentiment"`
		Entities        []string `json:"entities"`
		EngagementScore *float64 `json:"engagement_score"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn().Err(err).Str("content_hash", contentHash).Msg("unparseable enrichment payload, scoring without it")
		return Enrichment{}
	}

	enrichment := Enrichment{
		Topics:          payload.Topics,
		Sentiment:       payload.Sentiment,
		Entities:        payload.Entities,
		EngagementScore: payload.EngagementScore,
	}
	s.cache.Put(contentHash, enrichment)
	return enrichment
}
