// Package ingest runs the write path: payload validation, normalization,
// fingerprinting, cluster assignment, and the article insert, all inside one
// transaction per article.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sift/internal/cluster"
	"horse.fit/sift/internal/db"
	"horse.fit/sift/internal/fingerprint"
	"horse.fit/sift/internal/globaltime"
	"horse.fit/sift/internal/normalize"
	"horse.fit/sift/internal/payloadschema"
)

type Service struct {
	pool     *db.Pool
	logger   zerolog.Logger
	clusters *cluster.Service
}

func NewService(pool *db.Pool, logger zerolog.Logger, clusters *cluster.Service) *Service {
	return &Service{
		pool:     pool,
		logger:   logger,
		clusters: clusters,
	}
}

// Result reports what happened to one payload.
type Result struct {
	ArticleID   int64   `json:"article_id"`
	ClusterID   string  `json:"cluster_id,omitempty"`
	Founded     bool    `json:"founded"`
	Confidence  float64 `json:"confidence"`
	Duplicate   bool    `json:"duplicate"`
	DuplicateOf int64   `json:"duplicate_of,omitempty"`
}

// ErrInvalidPayload marks rejections of the payload itself, as opposed to
// storage failures. Callers use it to pick the right failure status.
var ErrInvalidPayload = errors.New("invalid article payload")

// Ingest validates and stores one article payload. Exact duplicates, by URL
// or by content hash, short-circuit before any cluster work happens.
func (s *Service) Ingest(ctx context.Context, payload json.RawMessage) (Result, error) {
	article, err := payloadschema.ValidateArticlePayload(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s.IngestValidated(ctx, article)
}

// IngestValidated stores an already-validated payload.
func (s *Service) IngestValidated(ctx context.Context, article *payloadschema.ArticlePayload) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	publishedAt, err := article.PublishedTime()
	if err != nil {
		return Result{}, err
	}

	body := ""
	if article.BodyText != nil {
		body = *article.BodyText
	} else if article.BodyHTML != nil {
		extracted, err := normalize.ExtractHTML(*article.BodyHTML, article.URL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", article.URL).Msg("html extraction failed, ingesting without body")
		} else {
			body = extracted
		}
	}

	summary := ""
	if article.Summary != nil {
		summary = *article.Summary
	}
	doc := normalize.Build(article.Title, summary, body)
	fp := fingerprint.Compute(doc.Canonical)

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin ingest tx: %w", err)
	}

	result, err := s.ingestTx(ctx, tx, article, doc, fp, publishedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return Result{}, fmt.Errorf("commit ingest tx: %w", err)
	}

	event := s.logger.Info().
		Int64("article_id", result.ArticleID).
		Str("source", article.Source).
		Bool("duplicate", result.Duplicate)
	if !result.Duplicate {
		event = event.Str("cluster_id", result.ClusterID).Bool("founded", result.Founded)
	}
	event.Msg("article ingested")

	return result, nil
}

func (s *Service) ingestTx(ctx context.Context, tx db.Tx, article *payloadschema.ArticlePayload, doc normalize.Document, fp fingerprint.Fingerprint, publishedAt *time.Time) (Result, error) {
	if existingID, found, err := findExactDuplicateTx(ctx, tx, article.URL, fp.ContentHash); err != nil {
		return Result{}, err
	} else if found {
		return Result{
			ArticleID:   existingID,
			Duplicate:   true,
			DuplicateOf: existingID,
		}, nil
	}

	if err := upsertSourceTx(ctx, tx, article.Source); err != nil {
		return Result{}, err
	}

	assignment, err := s.clusters.AssignTx(ctx, tx, fp, publishedAt)
	if err != nil {
		return Result{}, fmt.Errorf("assign cluster: %w", err)
	}

	articleID, err := insertArticleTx(ctx, tx, article, doc, fp, assignment, publishedAt)
	if err != nil {
		return Result{}, err
	}

	if err := insertAssignmentEventTx(ctx, tx, articleID, assignment); err != nil {
		return Result{}, err
	}

	return Result{
		ArticleID:  articleID,
		ClusterID:  assignment.ClusterID,
		Founded:    assignment.Founded,
		Confidence: assignment.Confidence,
	}, nil
}

func findExactDuplicateTx(ctx context.Context, tx db.Tx, url, contentHash string) (int64, bool, error) {
	const q = `
SELECT article_id
FROM news.articles
WHERE url = $1 OR content_hash = $2
LIMIT 1
`
	var articleID int64
	err := tx.QueryRow(ctx, q, url, contentHash).Scan(&articleID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("check exact duplicate: %w", err)
	}
	return articleID, true, nil
}

// upsertSourceTx registers unseen sources with the default credibility so
// ingestion never fails on a missing registry row. Curated credibility edits
// happen out of band and are left untouched.
func upsertSourceTx(ctx context.Context, tx db.Tx, sourceID string) error {
	const q = `
INSERT INTO news.sources (source_id, name)
VALUES ($1, $1)
ON CONFLICT (source_id) DO NOTHING
`
	if _, err := tx.Exec(ctx, q, sourceID); err != nil {
		return fmt.Errorf("upsert source %q: %w", sourceID, err)
	}
	return nil
}

func insertArticleTx(ctx context.Context, tx db.Tx, article *payloadschema.ArticlePayload, doc normalize.Document, fp fingerprint.Fingerprint, assignment cluster.Assignment, publishedAt *time.Time) (int64, error) {
	var simhash *int64
	var simhashPrefix *int32
	if fp.HasSimhash {
		signed := int64(fp.Simhash)
		prefix := int32(fingerprint.Prefix(fp.Simhash))
		simhash = &signed
		simhashPrefix = &prefix
	}

	category := "general"
	if article.Category != nil && *article.Category != "" {
		category = *article.Category
	}

	var enrichment []byte
	if article.Enrichment != nil {
		encoded, err := json.Marshal(article.Enrichment)
		if err != nil {
			return 0, fmt.Errorf("marshal enrichment: %w", err)
		}
		enrichment = encoded
	}

	const q = `
INSERT INTO news.articles (
    url, content_hash, simhash, simhash_prefix,
    cluster_id, duplication_confidence,
    title, summary, normalized_text, language,
    source_id, category, enrichment, word_count,
    published_at, collected_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING article_id
`
	var articleID int64
	err := tx.QueryRow(ctx, q,
		article.URL, fp.ContentHash, simhash, simhashPrefix,
		assignment.ClusterID, assignment.Confidence,
		article.Title, article.Summary, doc.Canonical, doc.Language,
		article.Source, category, enrichment, doc.WordCount,
		publishedAt, globaltime.UTC(),
	).Scan(&articleID)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return articleID, nil
}

func insertAssignmentEventTx(ctx context.Context, tx db.Tx, articleID int64, assignment cluster.Assignment) error {
	decision := "joined"
	if assignment.Founded {
		decision = "founded"
	}

	const q = `
INSERT INTO news.assignment_events (
    article_id, decision, cluster_id, best_distance, confidence, candidate_count
) VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := tx.Exec(ctx, q,
		articleID, decision, assignment.ClusterID,
		assignment.BestDistance, assignment.Confidence, assignment.CandidateCount,
	); err != nil {
		return fmt.Errorf("insert assignment event: %w", err)
	}
	return nil
}
