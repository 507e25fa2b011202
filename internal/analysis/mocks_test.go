package analysis

import (
	"context"
	"strings"
	"sync"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/services/ai"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, req ai.GenerateRequest) (string, error)

	mu       sync.Mutex
	requests []ai.GenerateRequest
}

var _ ai.Generator = (*mockGenerator)(nil)

func (m *mockGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return "", nil
}

func (m *mockGenerator) calls(operation string) []ai.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ai.GenerateRequest
	for _, r := range m.requests {
		if r.Operation == operation {
			out = append(out, r)
		}
	}
	return out
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, image models.Image) ([]string, error)
}

var _ CommentExtractor = (*mockExtractor)(nil)

func (m *mockExtractor) Extract(ctx context.Context, image models.Image) ([]string, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, image)
	}
	return nil, nil
}

type mockClassifier struct {
	classifyFunc func(ctx context.Context, sourceImage, text string) models.CommentRecord
}

var _ CommentClassifier = (*mockClassifier)(nil)

func (m *mockClassifier) Classify(ctx context.Context, sourceImage, text string) models.CommentRecord {
	if m.classifyFunc != nil {
		return m.classifyFunc(ctx, sourceImage, text)
	}
	return FallbackRecord(sourceImage, text)
}

// commentFromPrompt returns the comment embedded in a classification prompt
func commentFromPrompt(prompt string) string {
	const quote = `"""`
	start := strings.Index(prompt, quote)
	if start == -1 {
		return ""
	}
	rest := prompt[start+len(quote):]
	end := strings.Index(rest, quote)
	if end == -1 {
		return ""
	}
	return rest[:end]
}

func image(name string) models.Image {
	return models.Image{Name: name, MIMEType: "image/png", Data: []byte("png:" + name)}
}
