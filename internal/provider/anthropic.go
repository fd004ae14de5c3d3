// Package provider provides the Anthropic Claude implementation of the Provider interface.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/trustlens/trustlens/internal/config"
)

// AnthropicProvider implements Provider using the Anthropic Claude API.
type AnthropicProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg *config.ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, NewError(KindCredential, "Anthropic API key is required", nil)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-haiku-20240307"
	}

	return &AnthropicProvider{
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) complete(ctx context.Context, system, user string, opts RequestOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", NewError(KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(KindNetwork, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyAnthropicStatus(resp, respBody)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", NewError(KindUnknown, "failed to parse response", err)
	}

	if parsed.Error != nil {
		return "", NewError(KindUnknown, parsed.Error.Message, nil)
	}

	if len(parsed.Content) == 0 {
		return "", NewError(KindUnknown, "Anthropic returned no content", nil)
	}

	return parsed.Content[0].Text, nil
}

func classifyAnthropicStatus(resp *http.Response, body []byte) *Error {
	msg := fmt.Sprintf("Anthropic API error (status %d): %s", resp.StatusCode, string(body))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(KindCredential, msg, nil)
	case http.StatusTooManyRequests:
		e := NewError(KindRateLimit, msg, nil)
		e.RetryAfter = retryAfterHeader(resp, 2*time.Second)
		return e
	case http.StatusBadRequest:
		var parsed anthropicResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Type == "invalid_request_error" {
			return NewError(KindSafety, msg, nil)
		}
		return NewError(KindUnknown, msg, nil)
	default:
		if resp.StatusCode >= 500 {
			return NewError(KindNetwork, msg, nil)
		}
		return NewError(KindUnknown, msg, nil)
	}
}

func retryAfterHeader(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// AnalyzeText runs a free-form analysis of content under the given prompt.
func (p *AnthropicProvider) AnalyzeText(ctx context.Context, prompt, content string) (*TextAnalysis, error) {
	systemPrompt := prompt + `

Respond with a JSON object:
{
  "analysis": "your analysis of the content",
  "confidence": 0.0-1.0
}

Only respond with the JSON object, no other text.`

	response, err := p.complete(ctx, systemPrompt, fmt.Sprintf("Content to analyze:\n\n%s", content), DefaultRequestOptions())
	if err != nil {
		return nil, err
	}

	var parsed analysisResponse
	if err := parseJSONResponse(response, &parsed); err != nil {
		return nil, NewError(KindUnknown, "failed to parse analysis response", err)
	}

	return &TextAnalysis{Text: parsed.Analysis, Confidence: parsed.Confidence}, nil
}

// CompareTexts scores the semantic similarity of two texts.
func (p *AnthropicProvider) CompareTexts(ctx context.Context, a, b string) (*Comparison, error) {
	systemPrompt := comparePrompt

	response, err := p.complete(ctx, systemPrompt, fmt.Sprintf("Text A:\n%s\n\nText B:\n%s", a, b), DefaultRequestOptions())
	if err != nil {
		return nil, err
	}

	var parsed comparisonResponse
	if err := parseJSONResponse(response, &parsed); err != nil {
		return nil, NewError(KindUnknown, "failed to parse comparison response", err)
	}

	return &Comparison{
		Similarity:      parsed.Similarity,
		Confidence:      parsed.Confidence,
		MatchedSegments: parsed.MatchedSegments,
		Analysis:        parsed.Analysis,
	}, nil
}

// TranslateText translates text into the target language.
func (p *AnthropicProvider) TranslateText(ctx context.Context, text, targetLang string) (*Translation, error) {
	systemPrompt := fmt.Sprintf(translatePromptFmt, targetLang)

	response, err := p.complete(ctx, systemPrompt, text, DefaultRequestOptions())
	if err != nil {
		return nil, err
	}

	var parsed translationResponse
	if err := parseJSONResponse(response, &parsed); err != nil {
		return nil, NewError(KindUnknown, "failed to parse translation response", err)
	}

	return &Translation{
		TranslatedText:   parsed.TranslatedText,
		DetectedLanguage: parsed.DetectedLanguage,
		Confidence:       parsed.Confidence,
	}, nil
}
