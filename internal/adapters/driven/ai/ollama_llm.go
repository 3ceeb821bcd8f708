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

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

const defaultOllamaLLMModel = "llama3.2"

// OllamaLLM generates text with a local Ollama server
type OllamaLLM struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOllamaLLM creates an Ollama client from settings
func NewOllamaLLM(settings domain.LLMSettings) *OllamaLLM {
	if settings.Model == "" {
		settings.Model = defaultOllamaLLMModel
	}
	if settings.BaseURL == "" {
		settings.BaseURL = defaultOllamaBaseURL
	}
	return &OllamaLLM{
		model:       settings.Model,
		baseURL:     strings.TrimRight(settings.BaseURL, "/"),
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		client:      newHTTPClient(settings.Timeout),
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate runs a non-streaming completion
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	status, body, err := postJSON(ctx, o.client, o.baseURL+"/api/generate", nil, ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: o.temperature,
			NumPredict:  o.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", status, truncateBody(body))
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Response, nil
}

// Model returns the model name being used
func (o *OllamaLLM) Model() string {
	return o.model
}

// Ping checks the /api/tags endpoint
func (o *OllamaLLM) Ping(ctx context.Context) error {
	if err := getOK(ctx, o.client, o.baseURL+"/api/tags", nil); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases idle connections
func (o *OllamaLLM) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
