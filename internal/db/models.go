package db

import (
	"encoding/json"
	"time"
)

// Source maps news.sources. Credibility feeds the scorer's
// source-metadata override.
type Source struct {
	SourceID    string    `gorm:"column:source_id;type:text;primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Category    string    `gorm:"column:category;type:text;not null;default:general"`
	Credibility float64   `gorm:"column:credibility;type:double precision;not null;default:0.5"`
	Enabled     bool      `gorm:"column:enabled;type:boolean;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "news.sources" }

// Article maps news.articles. Fingerprint and cluster fields are written
// once at ingestion and never mutated; score fields are rewritten on every
// scoring run.
type Article struct {
	ArticleID   int64  `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleUUID string `gorm:"column:article_uuid;type:uuid;not null;default:gen_random_uuid();unique"`

	URL         string `gorm:"column:url;type:text;not null;unique"`
	ContentHash string `gorm:"column:content_hash;type:text;not null;unique"`
	// Simhash is the signed view of the unsigned 64-bit signature; NULL when
	// the normalized text was empty.
	Simhash       *int64 `gorm:"column:simhash;type:bigint"`
	SimhashPrefix *int32 `gorm:"column:simhash_prefix;type:integer"`

	ClusterID             string  `gorm:"column:cluster_id;type:uuid;not null"`
	DuplicationConfidence float64 `gorm:"column:duplication_confidence;type:double precision;not null;default:0"`

	Title          string  `gorm:"column:title;type:text;not null"`
	Summary        *string `gorm:"column:summary;type:text"`
	NormalizedText string  `gorm:"column:normalized_text;type:text;not null;default:''"`
	Language       string  `gorm:"column:language;type:text;not null;default:und"`

	SourceID   string          `gorm:"column:source_id;type:text;not null"`
	Category   string          `gorm:"column:category;type:text;not null;default:general"`
	Enrichment json.RawMessage `gorm:"column:enrichment;type:jsonb"`
	WordCount  int             `gorm:"column:word_count;type:integer;not null;default:0"`

	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz"`
	CollectedAt time.Time  `gorm:"column:collected_at;type:timestamptz;not null"`

	FinalScore      *float64        `gorm:"column:final_score;type:double precision"`
	ScoreComponents json.RawMessage `gorm:"column:score_components;type:jsonb"`
	ShouldInclude   *bool           `gorm:"column:should_include;type:boolean"`
	ScoredAt        *time.Time      `gorm:"column:scored_at;type:timestamptz"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "news.articles" }

// AssignmentEvent maps news.assignment_events, the audit trail of cluster
// decisions.
type AssignmentEvent struct {
	AssignmentEventID   int64     `gorm:"column:assignment_event_id;primaryKey;autoIncrement"`
	AssignmentEventUUID string    `gorm:"column:assignment_event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ArticleID           int64     `gorm:"column:article_id;type:bigint;not null;unique"`
	Decision            string    `gorm:"column:decision;type:text;not null"`
	ClusterID           string    `gorm:"column:cluster_id;type:uuid;not null"`
	BestDistance        *int      `gorm:"column:best_distance;type:integer"`
	Confidence          float64   `gorm:"column:confidence;type:double precision;not null;default:0"`
	CandidateCount      int       `gorm:"column:candidate_count;type:integer;not null;default:0"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (AssignmentEvent) TableName() string { return "news.assignment_events" }

// ScoreRun maps news.score_runs, one row per batch scoring invocation.
type ScoreRun struct {
	ScoreRunID   int64      `gorm:"column:score_run_id;primaryKey;autoIncrement"`
	ScoreRunUUID string     `gorm:"column:score_run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	StartedAt    time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt   *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Processed    int        `gorm:"column:processed;type:integer;not null;default:0"`
	Included     int        `gorm:"column:included;type:integer;not null;default:0"`
	MinimumScore float64    `gorm:"column:minimum_score;type:double precision;not null"`
	ErrorMessage *string    `gorm:"column:error_message;type:text"`
}

func (ScoreRun) TableName() string { return "news.score_runs" }

func autoMigrateModels() []any {
	return []any{
		&Source{},
		&Article{},
		&AssignmentEvent{},
		&ScoreRun{},
	}
}
