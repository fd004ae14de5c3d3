// Package provider defines a pluggable interface for the external text/image
// analysis service.
package provider

import (
	"context"
	"fmt"

	"github.com/trustlens/trustlens/internal/config"
)

// TextAnalysis is the result of a free-form analysis request.
type TextAnalysis struct {
	Text       string
	Confidence float64
}

// Comparison is the result of a semantic similarity request.
type Comparison struct {
	Similarity      float64
	Confidence      float64
	MatchedSegments []string
	Analysis        string
}

// Translation is the result of a translation request.
type Translation struct {
	TranslatedText   string
	DetectedLanguage string
	Confidence       float64
}

// RequestOptions contains options for provider requests.
type RequestOptions struct {
	MaxTokens   int
	Temperature float64
	Model       string
}

// DefaultRequestOptions returns sensible defaults.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		MaxTokens:   2048,
		Temperature: 0.0,
	}
}

// Provider defines the interface for the external analysis service. Every
// call is slow (hundreds of ms to seconds) and may fail; callers are expected
// to route requests through the throttler rather than calling directly.
type Provider interface {
	// AnalyzeText runs a free-form analysis of content under the given prompt.
	AnalyzeText(ctx context.Context, prompt, content string) (*TextAnalysis, error)

	// CompareTexts scores the semantic similarity of two texts.
	CompareTexts(ctx context.Context, a, b string) (*Comparison, error)

	// TranslateText translates text into the target language.
	TranslateText(ctx context.Context, text, targetLang string) (*Translation, error)

	// Name returns the provider name.
	Name() string
}

// New creates a new analysis provider based on configuration.
func New(cfg *config.ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", cfg.Provider)
	}
}
