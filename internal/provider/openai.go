// Package provider provides the OpenAI implementation of the Provider interface.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/trustlens/trustlens/internal/config"
)

// OpenAIProvider implements Provider using the OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg *config.ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, NewError(KindCredential, "OpenAI API key is required", nil)
	}

	client := openai.NewClient(cfg.APIKey)

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: client,
		model:  model,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) complete(ctx context.Context, system, user string, opts RequestOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}

	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(opts.Temperature),
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}

	if len(resp.Choices) == 0 {
		return "", NewError(KindUnknown, "OpenAI returned no choices", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAI maps go-openai API errors onto the provider taxonomy.
func classifyOpenAI(err error) *Error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return Classify(err)
	}

	switch apiErr.HTTPStatusCode {
	case 401, 403:
		return NewError(KindCredential, "invalid credentials", err)
	case 429:
		e := NewError(KindRateLimit, "rate limit exceeded", err)
		e.RetryAfter = 2 * time.Second
		return e
	case 400:
		if strings.Contains(strings.ToLower(apiErr.Message), "content") {
			return NewError(KindSafety, "content rejected by safety filter", err)
		}
		return NewError(KindUnknown, apiErr.Message, err)
	default:
		if apiErr.HTTPStatusCode >= 500 {
			return NewError(KindNetwork, "provider unavailable", err)
		}
		return NewError(KindUnknown, apiErr.Message, err)
	}
}

type analysisResponse struct {
	Analysis   string  `json:"analysis"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeText runs a free-form analysis of content under the given prompt.
func (p *OpenAIProvider) AnalyzeText(ctx context.Context, prompt, content string) (*TextAnalysis, error) {
	systemPrompt := prompt + `

Respond with a JSON object:
{
  "analysis": "your analysis of the content",
  "confidence": 0.0-1.0
}

Only respond with the JSON object, no other text.`

	userPrompt := fmt.Sprintf("Content to analyze:\n\n%s", content)

	response, err := p.complete(ctx, systemPrompt, userPrompt, DefaultRequestOptions())
	if err != nil {
		return nil, err
	}

	var parsed analysisResponse
	if err := parseJSONResponse(response, &parsed); err != nil {
		return nil, NewError(KindUnknown, "failed to parse analysis response", err)
	}

	return &TextAnalysis{Text: parsed.Analysis, Confidence: parsed.Confidence}, nil
}

type comparisonResponse struct {
	Similarity      float64  `json:"similarity"`
	Confidence      float64  `json:"confidence"`
	MatchedSegments []string `json:"matched_segments"`
	Analysis        string   `json:"analysis"`
}

// CompareTexts scores the semantic similarity of two texts.
func (p *OpenAIProvider) CompareTexts(ctx context.Context, a, b string) (*Comparison, error) {
	userPrompt := fmt.Sprintf("Text A:\n%s\n\nText B:\n%s", a, b)

	response, err := p.complete(ctx, comparePrompt, userPrompt, DefaultRequestOptions())
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

type translationResponse struct {
	TranslatedText   string  `json:"translated_text"`
	DetectedLanguage string  `json:"detected_language"`
	Confidence       float64 `json:"confidence"`
}

// TranslateText translates text into the target language.
func (p *OpenAIProvider) TranslateText(ctx context.Context, text, targetLang string) (*Translation, error) {
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

// parseJSONResponse extracts a JSON object from a model response, tolerating
// markdown code fences and surrounding prose.
func parseJSONResponse(response string, out interface{}) error {
	response = strings.TrimSpace(response)

	// Handle markdown code blocks
	if strings.HasPrefix(response, "```") {
		re := regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
		matches := re.FindStringSubmatch(response)
		if len(matches) > 1 {
			response = matches[1]
		}
	}

	if err := json.Unmarshal([]byte(response), out); err != nil {
		// Try to find JSON object in response
		start := strings.Index(response, "{")
		end := strings.LastIndex(response, "}")
		if start >= 0 && end > start {
			response = response[start : end+1]
			if err := json.Unmarshal([]byte(response), out); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}
			return nil
		}
		return fmt.Errorf("no JSON found in response")
	}

	return nil
}
