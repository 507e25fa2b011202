package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	logpkg "github.com/benvon/comment-pulse/internal/logger"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxCommentChars caps the comment text sent for classification
	DefaultMaxCommentChars = 5000
	// TruncationMarker is appended to comments cut at the cap
	TruncationMarker = "[...]"

	classifyTemperature = 0.1
)

// ErrEmptyClassification is returned when the model response holds no JSON object
var ErrEmptyClassification = errors.New("empty classification response")

// classification is the structured-output contract sent to the model
type classification struct {
	Reasoning  string  `json:"reasoning" jsonschema:"required,description=One short sentence explaining the label"`
	Sentiment  string  `json:"sentiment" jsonschema:"required,enum=positive,enum=negative,enum=neutral"`
	Confidence float64 `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1"`
	Topic      string  `json:"topic" jsonschema:"required"`
	Theme      string  `json:"theme" jsonschema:"required"`
}

// Classifier labels a single comment with sentiment, topic and theme
type Classifier struct {
	generator ai.Generator
	schema    map[string]any
	maxChars  int
	logger    *zap.Logger
}

// ClassifierOption configures a Classifier
type ClassifierOption func(*Classifier)

// WithMaxCommentChars overrides the truncation cap
func WithMaxCommentChars(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// NewClassifier creates a classifier backed by generator
func NewClassifier(generator ai.Generator, logger *zap.Logger, opts ...ClassifierOption) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		generator: generator,
		schema:    ai.GenerateSchema[classification](),
		maxChars:  DefaultMaxCommentChars,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify always returns exactly one record for text. When the request or
// decode fails the record is the neutral "Error"/"Unanalyzed" fallback.
func (c *Classifier) Classify(ctx context.Context, sourceImage, text string) models.CommentRecord {
	record, err := c.classify(ctx, sourceImage, text)
	if err != nil {
		c.logger.Warn("classification_failed",
			logpkg.ImageName(sourceImage),
			zap.Int("comment_length", len(text)),
			zap.Error(err),
		)
		return FallbackRecord(sourceImage, text)
	}
	return record
}

func (c *Classifier) classify(ctx context.Context, sourceImage, text string) (models.CommentRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CommentRecord{}, err
	}

	raw, err := c.generator.Generate(ctx, ai.GenerateRequest{
		Operation:         "classify_comment",
		SystemInstruction: classifySystemInstruction,
		Prompt:            buildClassifyPrompt(TruncateComment(text, c.maxChars)),
		SchemaName:        "comment_classification",
		Schema:            c.schema,
		Temperature:       ai.Float(classifyTemperature),
		MaxOutputTokens:   MaxOutputTokens,
	})
	if err != nil {
		return models.CommentRecord{}, err
	}

	result, err := DecodeClassification(CleanJSON(raw))
	if err != nil {
		return models.CommentRecord{}, err
	}
	c.logger.Debug("comment_classified",
		logpkg.ImageName(sourceImage),
		zap.String("sentiment", string(result.Sentiment)),
		zap.String("reasoning", ai.SanitizeResponse(result.Reasoning, false)),
	)

	return models.CommentRecord{
		ID:          uuid.New(),
		SourceImage: sourceImage,
		Text:        text,
		Sentiment:   result.Sentiment,
		Confidence:  result.Confidence,
		Topic:       result.Topic,
		Theme:       result.Theme,
	}, nil
}

// Classification is a decoded, defaulted classifier answer
type Classification struct {
	Reasoning  string
	Sentiment  models.Sentiment
	Confidence float64
	Topic      string
	Theme      string
}

// DecodeClassification strictly decodes a classifier payload. The payload
// must be a JSON object; each field that is absent or of the wrong type
// falls back to its default rather than failing the whole record.
func DecodeClassification(payload string) (Classification, error) {
	if strings.TrimSpace(payload) == "" {
		return Classification{}, ErrEmptyClassification
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return Classification{}, fmt.Errorf("failed to decode classification: %w", err)
	}
	if fields == nil {
		return Classification{}, ErrEmptyClassification
	}

	return Classification{
		Reasoning:  stringField(fields, "reasoning", ""),
		Sentiment:  NormalizeSentiment(stringField(fields, "sentiment", "")),
		Confidence: confidenceField(fields),
		Topic:      stringField(fields, "topic", models.DefaultCategory),
		Theme:      stringField(fields, "theme", models.DefaultCategory),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// confidenceField reads confidence, treating missing, malformed and
// non-positive values as the default. Zero is reserved for fallback records.
func confidenceField(fields map[string]json.RawMessage) float64 {
	raw, ok := fields["confidence"]
	if !ok {
		return models.DefaultConfidence
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || v <= 0 {
		return models.DefaultConfidence
	}
	if v > 1 {
		return 1
	}
	return v
}

// TruncateComment caps text at maxChars runes, appending TruncationMarker when cut
func TruncateComment(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars]) + TruncationMarker
}

// FallbackRecord is the record used when a comment could not be classified
func FallbackRecord(sourceImage, text string) models.CommentRecord {
	return models.CommentRecord{
		ID:          uuid.New(),
		SourceImage: sourceImage,
		Text:        text,
		Sentiment:   models.SentimentNeutral,
		Confidence:  0,
		Topic:       models.ErrorTopic,
		Theme:       models.UnanalyzedTheme,
	}
}
