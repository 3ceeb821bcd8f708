package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/custodia-labs/faqbot/internal/core/ports/driving"
)

// State is the process-wide pipeline state handed to request handlers.
// It starts uninitialised and holds the answer pipeline once startup has
// loaded it. The AI services are kept alongside so they can be health
// checked and closed on shutdown.
// Thread-safe for concurrent access.
type State struct {
	mu sync.RWMutex

	pipeline driving.AnswerService

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
}

// NewState creates an uninitialised State
func NewState() *State {
	return &State{}
}

// SetPipeline publishes the answer pipeline.
// It can only be set once; later calls fail.
func (s *State) SetPipeline(p driving.AnswerService) error {
	if p == nil {
		return fmt.Errorf("%w: nil pipeline", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline != nil {
		return fmt.Errorf("%w: pipeline already initialized", domain.ErrInvalidInput)
	}
	s.pipeline = p
	return nil
}

// Pipeline returns the answer pipeline and whether it is initialised
func (s *State) Pipeline() (driving.AnswerService, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline, s.pipeline != nil
}

// Ready reports whether queries can be answered
func (s *State) Ready() bool {
	_, ok := s.Pipeline()
	return ok
}

// Answer forwards to the pipeline, or fails with ErrPipelineNotInitialized
// before startup has finished. No model is contacted in that case.
func (s *State) Answer(ctx context.Context, query string) (*domain.Answer, error) {
	p, ok := s.Pipeline()
	if !ok {
		return nil, domain.ErrPipelineNotInitialized
	}
	return p.Answer(ctx, query)
}

// Retrieve forwards to the pipeline, or fails with ErrPipelineNotInitialized
func (s *State) Retrieve(ctx context.Context, query string, k int) (*domain.RetrievalResult, error) {
	p, ok := s.Pipeline()
	if !ok {
		return nil, domain.ErrPipelineNotInitialized
	}
	return p.Retrieve(ctx, query, k)
}

// Fingerprint describes the loaded index, or the zero value before startup
func (s *State) Fingerprint() domain.IndexFingerprint {
	p, ok := s.Pipeline()
	if !ok {
		return domain.IndexFingerprint{}
	}
	return p.Fingerprint()
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *State) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *State) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// ValidateAndSetEmbedding health checks svc before keeping it.
// A failing service is closed and the error returned.
func (s *State) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		return fmt.Errorf("%w: nil embedding service", domain.ErrInvalidInput)
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("%w: embedding: %w", domain.ErrServiceUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
	return nil
}

// ValidateAndSetLLM pings svc before keeping it.
// A failing service is closed and the error returned.
func (s *State) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		return fmt.Errorf("%w: nil LLM service", domain.ErrInvalidInput)
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("%w: llm: %w", domain.ErrServiceUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.llmService != nil {
		_ = s.llmService.Close()
	}
	s.llmService = svc
	return nil
}

// Close shuts down the AI services. The pipeline stays published so
// in-flight requests finish against it.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}
	return nil
}
