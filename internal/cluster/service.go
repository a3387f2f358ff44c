package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sift/internal/db"
	"horse.fit/sift/internal/fingerprint"
)

type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
	cfg    Config
}

func NewService(pool *db.Pool, logger zerolog.Logger, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cluster config: %w", err)
	}
	return &Service{
		pool:   pool,
		logger: logger,
		cfg:    cfg,
	}, nil
}

func (s *Service) Config() Config {
	return s.cfg
}

// AssignTx resolves the cluster for a new fingerprint against the bounded
// candidate window read inside the caller's transaction. It never mutates
// prior articles.
func (s *Service) AssignTx(ctx context.Context, tx db.Tx, fp fingerprint.Fingerprint, publishedAt *time.Time) (Assignment, error) {
	if !fp.HasSimhash {
		return Resolve(0, false, publishedAt, nil, s.cfg.Threshold), nil
	}

	candidates, err := s.candidateWindowTx(ctx, tx, fp.Simhash)
	if err != nil {
		return Assignment{}, err
	}
	return Resolve(fp.Simhash, true, publishedAt, candidates, s.cfg.Threshold), nil
}

// candidateWindowTx reads up to CandidateWindow recent signed articles,
// preferring the signature-prefix bucket and its two neighbors; when the
// buckets hold nothing it falls back to plain recency so a sparse corpus
// still gets compared.
func (s *Service) candidateWindowTx(ctx context.Context, tx db.Tx, simhash uint64) ([]Candidate, error) {
	prefix := fingerprint.Prefix(simhash)

	buckets := []uint16{prefix}
	if prefix > 0 {
		buckets = append(buckets, prefix-1)
	}
	if prefix < 0xFFFF {
		buckets = append(buckets, prefix+1)
	}

	seen := make(map[int64]struct{}, s.cfg.CandidateWindow)
	candidates := make([]Candidate, 0, s.cfg.CandidateWindow)

	for _, bucket := range buckets {
		remaining := s.cfg.CandidateWindow - len(candidates)
		if remaining <= 0 {
			break
		}
		bucketCandidates, err := queryCandidatesTx(ctx, tx, candidateBucketQuery, remaining, int32(bucket), remaining)
		if err != nil {
			return nil, err
		}
		for _, candidate := range bucketCandidates {
			if _, ok := seen[candidate.ArticleID]; ok {
				continue
			}
			seen[candidate.ArticleID] = struct{}{}
			candidates = append(candidates, candidate)
		}
	}

	if len(candidates) == 0 {
		fallback, err := queryCandidatesTx(ctx, tx, candidateRecencyQuery, s.cfg.CandidateWindow, s.cfg.CandidateWindow)
		if err != nil {
			return nil, err
		}
		candidates = fallback
	}

	return candidates, nil
}

const candidateBucketQuery = `
SELECT article_id, simhash, cluster_id, published_at
FROM news.articles
WHERE simhash_prefix = $1
  AND simhash IS NOT NULL
ORDER BY collected_at DESC
LIMIT $2
`

const candidateRecencyQuery = `
SELECT article_id, simhash, cluster_id, published_at
FROM news.articles
WHERE simhash IS NOT NULL
ORDER BY collected_at DESC
LIMIT $1
`

func queryCandidatesTx(ctx context.Context, tx db.Tx, query string, limit int, args ...any) ([]Candidate, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cluster candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0, limit)
	for rows.Next() {
		var (
			candidate   Candidate
			signedHash  int64
			publishedAt *time.Time
		)
		if err := rows.Scan(&candidate.ArticleID, &signedHash, &candidate.ClusterID, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan cluster candidate: %w", err)
		}
		candidate.Simhash = uint64(signedHash)
		candidate.PublishedAt = publishedAt
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster candidates: %w", err)
	}
	return candidates, nil
}

type ReclusterResult struct {
	Processed int
	Clusters  int
}

// ReclusterAll is the offline backfill: it walks the whole corpus in
// ingestion order and reassigns every article against the in-memory set of
// cluster founding signatures. Unlike the online path it sees every founding
// signature, not just a recency window; it is meant for migrations, not the
// ingestion hot path.
func (s *Service) ReclusterAll(ctx context.Context) (ReclusterResult, error) {
	if s == nil || s.pool == nil {
		return ReclusterResult{}, fmt.Errorf("cluster service is not initialized")
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return ReclusterResult{}, fmt.Errorf("begin recluster tx: %w", err)
	}

	result, err := s.reclusterAllTx(ctx, tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return ReclusterResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return ReclusterResult{}, fmt.Errorf("commit recluster tx: %w", err)
	}
	return result, nil
}

func (s *Service) reclusterAllTx(ctx context.Context, tx db.Tx) (ReclusterResult, error) {
	const q = `
SELECT article_id, simhash, published_at
FROM news.articles
ORDER BY article_id ASC
`
	rows, err := tx.Query(ctx, q)
	if err != nil {
		return ReclusterResult{}, fmt.Errorf("query articles for recluster: %w", err)
	}

	type row struct {
		articleID   int64
		simhash     *int64
		publishedAt *time.Time
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.articleID, &r.simhash, &r.publishedAt); err != nil {
			rows.Close()
			return ReclusterResult{}, fmt.Errorf("scan article for recluster: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return ReclusterResult{}, fmt.Errorf("iterate articles for recluster: %w", err)
	}
	rows.Close()

	var founders []Candidate
	var result ReclusterResult
	for _, r := range all {
		hasSimhash := r.simhash != nil
		var signature uint64
		if hasSimhash {
			signature = uint64(*r.simhash)
		}

		assignment := Resolve(signature, hasSimhash, r.publishedAt, founders, s.cfg.Threshold)
		if assignment.Founded {
			result.Clusters++
			if hasSimhash {
				founders = append(founders, Candidate{
					ArticleID:   r.articleID,
					Simhash:     signature,
					ClusterID:   assignment.ClusterID,
					PublishedAt: r.publishedAt,
				})
			}
		}

		const update = `
UPDATE news.articles
SET cluster_id = $1,
    duplication_confidence = $2,
    updated_at = now()
WHERE article_id = $3
`
		if _, err := tx.Exec(ctx, update, assignment.ClusterID, assignment.Confidence, r.articleID); err != nil {
			return ReclusterResult{}, fmt.Errorf("update recluster assignment article_id=%d: %w", r.articleID, err)
		}
		result.Processed++
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("clusters", result.Clusters).
		Int("threshold", s.cfg.Threshold).
		Msg("recluster backfill complete")

	return result, nil
}
