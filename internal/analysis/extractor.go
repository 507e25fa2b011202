package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	logpkg "github.com/benvon/comment-pulse/internal/logger"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/services/ai"
	"go.uber.org/zap"
)

// MaxOutputTokens bounds every model response
const MaxOutputTokens = 8192

// extraction is the structured-output shape of an extraction response.
// Comments sit under an object root because structured output rejects
// array roots.
type extraction struct {
	Comments []string `json:"comments" jsonschema:"required,description=Comment texts in screen order"`
}

// Extractor turns a screenshot into the raw comment strings visible in it
type Extractor struct {
	generator ai.Generator
	schema    map[string]any
	logger    *zap.Logger
}

// NewExtractor creates an extractor backed by generator
func NewExtractor(generator ai.Generator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		generator: generator,
		schema:    ai.GenerateSchema[extraction](),
		logger:    logger,
	}
}

// Extract returns the comments found in image, in the order the model
// listed them. An unparseable or empty response yields no comments and no
// error; only a failed request is an error.
func (e *Extractor) Extract(ctx context.Context, image models.Image) ([]string, error) {
	raw, err := e.generator.Generate(ctx, ai.GenerateRequest{
		Operation: "extract_comments",
		Prompt:    extractPrompt,
		Attachment: &ai.Attachment{
			Name:     image.Name,
			MIMEType: image.MIMEType,
			Data:     image.Data,
		},
		SchemaName:      "comments",
		Schema:          e.schema,
		MaxOutputTokens: MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract comments from %s: %w", image.Name, err)
	}

	comments, ok := decodeComments(CleanJSON(raw))
	if !ok {
		e.logger.Warn("extraction_unparseable",
			logpkg.ImageName(image.Name),
			zap.Int("response_length", len(raw)),
		)
		return nil, nil
	}
	return comments, nil
}

// decodeComments parses a {"comments": [...]} object, or a bare array from
// models that ignore the response format, dropping blank entries.
// Non-string elements make the whole payload invalid.
func decodeComments(payload string) ([]string, bool) {
	if payload == "" {
		return nil, true
	}
	var decoded []string
	if strings.HasPrefix(payload, "{") {
		var obj struct {
			Comments *[]string `json:"comments"`
		}
		if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj.Comments == nil {
			return nil, false
		}
		decoded = *obj.Comments
	} else if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, false
	}
	comments := make([]string, 0, len(decoded))
	for _, c := range decoded {
		if strings.TrimSpace(c) == "" {
			continue
		}
		comments = append(comments, c)
	}
	return comments, true
}
