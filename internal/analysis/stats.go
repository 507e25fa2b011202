package analysis

import (
	"math"
	"sort"

	"github.com/benvon/comment-pulse/internal/models"
)

// Aggregate reduces records to counts per sentiment, theme and topic. The
// result does not depend on record order.
func Aggregate(records []models.CommentRecord) models.AnalysisStats {
	stats := models.AnalysisStats{
		Themes: make(map[string]int),
		Topics: make(map[string]int),
	}
	for _, r := range records {
		stats.Total++
		switch r.Sentiment {
		case models.SentimentPositive:
			stats.Positive++
		case models.SentimentNegative:
			stats.Negative++
		default:
			stats.Neutral++
		}
		stats.Themes[r.Theme]++
		stats.Topics[r.Topic]++
	}
	return stats
}

// AggregatePosts aggregates the union of every post's records
func AggregatePosts(posts []models.Post) models.AnalysisStats {
	n := 0
	for _, p := range posts {
		n += len(p.Records)
	}
	all := make([]models.CommentRecord, 0, n)
	for _, p := range posts {
		all = append(all, p.Records...)
	}
	return Aggregate(all)
}

// Percentages returns each sentiment's share of the total rounded to a
// whole percent. All shares are zero when there are no records.
func Percentages(stats models.AnalysisStats) models.SentimentPercentages {
	if stats.Total == 0 {
		return models.SentimentPercentages{}
	}
	pct := func(n int) int {
		return int(math.Round(float64(n) * 100 / float64(stats.Total)))
	}
	return models.SentimentPercentages{
		Positive: pct(stats.Positive),
		Negative: pct(stats.Negative),
		Neutral:  pct(stats.Neutral),
	}
}

// Count is one entry of a ranked theme or topic list
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopCounts ranks a count map by descending count then name, keeping at
// most limit entries (all when limit <= 0)
func TopCounts(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, c := range counts {
		out = append(out, Count{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
