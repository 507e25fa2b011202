package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned when a provider is constructed without a credential
var ErrMissingAPIKey = errors.New("ai provider api key is required")

// Generator is the model capability the analysis pipeline depends on:
// given a prompt and an optional image, return the model's text.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Attachment is binary content sent alongside the prompt
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// GenerateRequest describes one model invocation
type GenerateRequest struct {
	// Operation names the call in logs and traces (e.g. "extract_comments")
	Operation         string
	SystemInstruction string
	Prompt            string
	Attachment        *Attachment
	// SchemaName and Schema request structured output. Schema is a JSON
	// schema document as produced by GenerateSchema.
	SchemaName      string
	Schema          map[string]any
	Temperature     *float64
	MaxOutputTokens int
}

// ProviderConfig carries the settings shared by all providers
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	Logger    *zap.Logger
	DebugMode bool
}

// ProviderFactory creates a Generator from configuration
type ProviderFactory func(cfg ProviderConfig) (Generator, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, cfg ProviderConfig) (Generator, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(cfg)
}

// DefaultRegistry returns a registry with every built-in provider registered
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r)
	return r
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}

// Float returns a pointer to v, for optional request fields
func Float(v float64) *float64 {
	return &v
}
