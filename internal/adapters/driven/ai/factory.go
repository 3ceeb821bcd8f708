package ai

import (
	"fmt"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderHashing:
		return NewHashingEmbedding(settings.Dimensions), nil
	case domain.AIProviderOpenAI:
		emb, err := NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return emb.WithDimensions(settings.Dimensions).WithTimeout(settings.Timeout), nil
	case domain.AIProviderOllama:
		return NewOllamaEmbedding(settings.BaseURL, settings.Model, settings.Dimensions, settings.Timeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateLLMService creates an LLM service from settings
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderGemini:
		svc, err = NewGeminiLLM(*settings)
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAILLM(*settings)
	case domain.AIProviderAnthropic:
		svc, err = NewAnthropicLLM(*settings)
	case domain.AIProviderOllama:
		svc = NewOllamaLLM(*settings)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}
