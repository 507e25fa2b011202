package analysis

import (
	"strings"

	"github.com/benvon/comment-pulse/internal/models"
)

// NormalizeSentiment maps a free-form model label onto the closed sentiment
// set by substring match, so "Positive.", "très négatif" and "NEGATIVE"
// all resolve. Anything unrecognised, including "", is neutral.
func NormalizeSentiment(label string) models.Sentiment {
	s := strings.ToLower(strings.TrimSpace(label))
	switch {
	case s == "":
		return models.SentimentNeutral
	case strings.Contains(s, "positi"):
		return models.SentimentPositive
	case strings.Contains(s, "negati"), strings.Contains(s, "négati"):
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
