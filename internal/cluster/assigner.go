// Package cluster decides whether a fingerprinted article joins an existing
// duplicate cluster or founds a new one. The decision itself is a pure
// function over a bounded candidate set; reading that set from storage is the
// service's job.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"horse.fit/sift/internal/fingerprint"
)

type Config struct {
	// Threshold is the maximum Hamming distance (of 64 bits) at which an
	// article still joins an existing cluster.
	Threshold int
	// CandidateWindow bounds how many recent signed articles are considered
	// per assignment.
	CandidateWindow int
}

func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > fingerprint.SignatureBits {
		return fmt.Errorf("simhash threshold must be between 0 and %d, got %d", fingerprint.SignatureBits, c.Threshold)
	}
	if c.CandidateWindow < 1 {
		return fmt.Errorf("simhash candidate window must be >= 1, got %d", c.CandidateWindow)
	}
	return nil
}

// Candidate is one prior article inside the recency window.
type Candidate struct {
	ArticleID   int64
	Simhash     uint64
	ClusterID   string
	PublishedAt *time.Time
}

// Assignment is the outcome of one cluster decision.
type Assignment struct {
	ClusterID  string
	Confidence float64
	Founded    bool
	// BestDistance is nil when the article founded a new cluster.
	BestDistance   *int
	CandidateCount int
}

// Resolve runs the threshold decision over an already-materialized candidate
// set. Both the online assigner and the offline recluster path go through
// this function so the two cannot disagree on the same inputs.
func Resolve(simhash uint64, hasSimhash bool, publishedAt *time.Time, candidates []Candidate, threshold int) Assignment {
	if !hasSimhash {
		return founded(len(candidates))
	}

	type hit struct {
		candidate Candidate
		distance  int
	}
	hits := make([]hit, 0, len(candidates))
	for _, candidate := range candidates {
		distance := fingerprint.HammingDistance(simhash, candidate.Simhash)
		if distance <= threshold {
			hits = append(hits, hit{candidate: candidate, distance: distance})
		}
	}
	if len(hits) == 0 {
		return founded(len(candidates))
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		di := timeDistanceSeconds(publishedAt, hits[i].candidate.PublishedAt)
		dj := timeDistanceSeconds(publishedAt, hits[j].candidate.PublishedAt)
		if di != dj {
			return di < dj
		}
		return hits[i].candidate.ArticleID > hits[j].candidate.ArticleID
	})

	best := hits[0]
	distance := best.distance
	return Assignment{
		ClusterID:      best.candidate.ClusterID,
		Confidence:     fingerprint.Confidence(distance),
		BestDistance:   &distance,
		CandidateCount: len(candidates),
	}
}

func founded(candidateCount int) Assignment {
	return Assignment{
		ClusterID:      uuid.NewString(),
		Confidence:     0,
		Founded:        true,
		CandidateCount: candidateCount,
	}
}

func timeDistanceSeconds(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	return math.Abs(a.Sub(*b).Seconds())
}
