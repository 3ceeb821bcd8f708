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

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const defaultOpenAIChatModel = "gpt-4o-mini"

// OpenAILLM generates text with the OpenAI chat completions API.
// Any OpenAI-compatible server works via BaseURL.
type OpenAILLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOpenAILLM creates an OpenAI chat client from settings
func NewOpenAILLM(settings domain.LLMSettings) (*OpenAILLM, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if settings.Model == "" {
		settings.Model = defaultOpenAIChatModel
	}
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAILLM{
		apiKey:      settings.APIKey,
		model:       settings.Model,
		baseURL:     strings.TrimRight(settings.BaseURL, "/"),
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		client:      newHTTPClient(settings.Timeout),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt as a single user message
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}

	status, body, err := postJSON(ctx, o.client, o.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return "", fmt.Errorf("openai error (status %d): %s", status, truncateBody(body))
		}
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai error: %s (type: %s)", resp.Error.Message, resp.Error.Type)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d)", status)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model name being used
func (o *OpenAILLM) Model() string {
	return o.model
}

// Ping lists models to verify the key and endpoint
func (o *OpenAILLM) Ping(ctx context.Context) error {
	if err := getOK(ctx, o.client, o.baseURL+"/models", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

// Close releases idle connections
func (o *OpenAILLM) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
