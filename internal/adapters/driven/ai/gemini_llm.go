package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Ensure GeminiLLM implements LLMService
var _ driven.LLMService = (*GeminiLLM)(nil)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash-latest"
)

// GeminiLLM generates text with the Google Gemini generateContent API
type GeminiLLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewGeminiLLM creates a Gemini client from settings
func NewGeminiLLM(settings domain.LLMSettings) (*GeminiLLM, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if settings.Model == "" {
		settings.Model = defaultGeminiModel
	}
	if settings.BaseURL == "" {
		settings.BaseURL = defaultGeminiBaseURL
	}
	return &GeminiLLM{
		apiKey:      settings.APIKey,
		model:       settings.Model,
		baseURL:     strings.TrimRight(settings.BaseURL, "/"),
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		client:      newHTTPClient(settings.Timeout),
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt as a single user turn
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	status, body, err := postJSON(ctx, g.client, endpoint, map[string]string{
		"x-goog-api-key": g.apiKey,
	}, reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return "", fmt.Errorf("gemini error (status %d): %s", status, truncateBody(body))
		}
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("gemini error: %s (status: %s)", resp.Error.Message, resp.Error.Status)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("gemini error (status %d)", status)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

// Model returns the model name being used
func (g *GeminiLLM) Model() string {
	return g.model
}

// Ping fetches the model metadata
func (g *GeminiLLM) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models/%s", g.baseURL, url.PathEscape(g.model))
	if err := getOK(ctx, g.client, endpoint, map[string]string{"x-goog-api-key": g.apiKey}); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases idle connections
func (g *GeminiLLM) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
