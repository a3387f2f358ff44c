// Package rerank orders scored articles into a feed: a deterministic seeded
// shuffle breaks storage-order bias, a stable sort ranks by score, and greedy
// per-source and per-topic caps keep the feed from collapsing onto one outlet
// or one story.
package rerank

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

type Config struct {
	// Seed drives the pre-sort shuffle. The same seed and input always
	// produce the same feed.
	Seed                int64
	SourceCapPercentage float64
	TopicCapPercentage  float64
}

func (c Config) Validate() error {
	if c.SourceCapPercentage <= 0 || c.SourceCapPercentage > 1 {
		return fmt.Errorf("source cap percentage must be in (0,1], got %v", c.SourceCapPercentage)
	}
	if c.TopicCapPercentage <= 0 || c.TopicCapPercentage > 1 {
		return fmt.Errorf("topic cap percentage must be in (0,1], got %v", c.TopicCapPercentage)
	}
	return nil
}

// Item is one scored article as the reranker sees it.
type Item struct {
	ArticleID   int64
	Source      string
	Topics      []string
	FinalScore  float64
	PublishedAt *time.Time
}

// Rerank returns at most limit items. The input slice is not modified.
func Rerank(items []Item, limit int, cfg Config) []Item {
	if limit < 1 || len(items) == 0 {
		return nil
	}

	shuffled := make([]Item, len(items))
	copy(shuffled, items)
	rng := rand.New(rand.NewSource(cfg.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	// Stable sort over the shuffled order: ties beyond the sort key resolve
	// by shuffle position, which only the seed controls.
	sort.SliceStable(shuffled, func(i, j int) bool {
		return rankLess(shuffled[i], shuffled[j])
	})

	return applyCaps(shuffled, limit, cfg)
}

// rankLess orders i before j when i ranks higher: score descending, then
// publish date descending (undated last), then source name descending.
func rankLess(a, b Item) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	at, bt := publishEpoch(a.PublishedAt), publishEpoch(b.PublishedAt)
	if at != bt {
		return at > bt
	}
	return a.Source > b.Source
}

func publishEpoch(t *time.Time) float64 {
	if t == nil {
		return math.Inf(-1)
	}
	return float64(t.UnixNano())
}

// unknownSource is the cap bucket for items that carry no source name.
// Sourceless items share one cap instead of bypassing it.
const unknownSource = "unknown"

// applyCaps walks the ranked list once, skipping items whose source or any
// of whose topics already hit its cap. A skipped item never stops the scan;
// lower-ranked items from other sources still fill the feed.
func applyCaps(ranked []Item, limit int, cfg Config) []Item {
	sourceCap := capFor(limit, cfg.SourceCapPercentage)
	topicCap := capFor(limit, cfg.TopicCapPercentage)

	sourceCounts := make(map[string]int)
	topicCounts := make(map[string]int)
	out := make([]Item, 0, limit)

	for _, item := range ranked {
		if len(out) == limit {
			break
		}
		source := item.Source
		if source == "" {
			source = unknownSource
		}
		if sourceCounts[source] >= sourceCap {
			continue
		}
		blocked := false
		for _, topic := range item.Topics {
			if topicCounts[topic] >= topicCap {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		out = append(out, item)
		sourceCounts[source]++
		for _, topic := range item.Topics {
			topicCounts[topic]++
		}
	}
	return out
}

// capFor is floor(limit * pct) with a floor of one so a small feed still
// admits at least one item per source and topic.
func capFor(limit int, pct float64) int {
	n := int(math.Floor(float64(limit) * pct))
	if n < 1 {
		return 1
	}
	return n
}
