package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Ensure AnthropicLLM implements LLMService
var _ driven.LLMService = (*AnthropicLLM)(nil)

const (
	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
	anthropicVersion          = "2023-06-01"
)

// AnthropicLLM generates text with the Anthropic messages API
type AnthropicLLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewAnthropicLLM creates an Anthropic client from settings
func NewAnthropicLLM(settings domain.LLMSettings) (*AnthropicLLM, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if settings.Model == "" {
		settings.Model = defaultAnthropicModel
	}
	if settings.BaseURL == "" {
		settings.BaseURL = defaultAnthropicBaseURL
	}
	// Anthropic requires max_tokens to be set
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicLLM{
		apiKey:      settings.APIKey,
		model:       settings.Model,
		baseURL:     strings.TrimRight(settings.BaseURL, "/"),
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		client:      newHTTPClient(settings.Timeout),
	}, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicLLM) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

// Generate sends the prompt as a single user message
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := messagesRequest{
		Model:       a.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}

	status, body, err := postJSON(ctx, a.client, a.baseURL+"/v1/messages", a.headers(), reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return "", fmt.Errorf("anthropic error (status %d): %s", status, truncateBody(body))
		}
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", resp.Error.Message)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d)", status)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}

	// Concatenate all text content blocks
	var result strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

// Model returns the model name being used
func (a *AnthropicLLM) Model() string {
	return a.model
}

// Ping lists models to verify the key
func (a *AnthropicLLM) Ping(ctx context.Context) error {
	if err := getOK(ctx, a.client, a.baseURL+"/v1/models", a.headers()); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	return nil
}

// Close releases idle connections
func (a *AnthropicLLM) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
