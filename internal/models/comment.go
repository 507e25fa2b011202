package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment is the closed set of labels a comment can carry
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three known labels
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

const (
	// DefaultConfidence is used when the classifier omits a confidence value
	DefaultConfidence = 0.9
	// DefaultCategory is used when the classifier omits topic or theme
	DefaultCategory = "Other"
	// ErrorTopic marks a record whose classification failed
	ErrorTopic = "Error"
	// UnanalyzedTheme marks a record whose classification failed
	UnanalyzedTheme = "Unanalyzed"
)

// CommentRecord is one classified comment extracted from a screenshot
type CommentRecord struct {
	ID          uuid.UUID `json:"id"`
	SourceImage string    `json:"imageSource"`
	Text        string    `json:"text"`
	Sentiment   Sentiment `json:"sentiment"`
	Confidence  float64   `json:"confidence"`
	Topic       string    `json:"topic"`
	Theme       string    `json:"theme"`
}

// Unanalyzed reports whether the record is a classification fallback.
// Successful classifications never carry a zero confidence.
func (r CommentRecord) Unanalyzed() bool {
	return r.Confidence == 0 && r.Topic == ErrorTopic && r.Theme == UnanalyzedTheme
}

// AnalysisStats summarises a set of comment records
type AnalysisStats struct {
	Total    int            `json:"total"`
	Positive int            `json:"positive"`
	Negative int            `json:"negative"`
	Neutral  int            `json:"neutral"`
	Themes   map[string]int `json:"themes"`
	Topics   map[string]int `json:"topics"`
}

// SentimentPercentages holds whole-percent shares of each sentiment
type SentimentPercentages struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Image is a single uploaded screenshot
type Image struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
