package services

import (
	"context"
	"fmt"
	"log/slog"
	rtdebug "runtime/debug"
	"strings"
	"time"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/custodia-labs/faqbot/internal/core/ports/driving"
	"github.com/custodia-labs/faqbot/internal/vectorindex"
)

// Verify interface compliance
var _ driving.AnswerService = (*RAGPipeline)(nil)

// Retrieval defaults
const (
	DefaultMinScore       = 0.05
	DefaultRequestTimeout = 60 * time.Second
)

// Answer outcomes reported to metrics
const (
	OutcomeAnswered = "answered"
	OutcomeRefused  = "refused"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// RAGConfig tunes retrieval and synthesis
type RAGConfig struct {
	// Location of the persisted index
	Location string
	TopK     int
	// MinScore is the similarity the best chunk must reach before the
	// generator is consulted; 0 or less disables the gate
	MinScore       float64
	RequestTimeout time.Duration
	Refusal        string
}

// DefaultRAGConfig returns the retrieval defaults for location
func DefaultRAGConfig(location string) RAGConfig {
	return RAGConfig{
		Location:       location,
		TopK:           domain.DefaultTopK,
		MinScore:       DefaultMinScore,
		RequestTimeout: DefaultRequestTimeout,
		Refusal:        domain.DefaultRefusal,
	}
}

// RAGPipeline answers questions from a loaded index.
// It is immutable after construction and safe for concurrent use.
type RAGPipeline struct {
	cfg       RAGConfig
	index     *vectorindex.Index
	embedder  driven.Embedder
	generator driven.TextGenerator
	logger    *slog.Logger
	metrics   driven.Metrics
}

// NewRAGPipeline loads the index at cfg.Location and checks that embedder
// produces vectors in the same space the index was built with.
func NewRAGPipeline(
	ctx context.Context,
	cfg RAGConfig,
	store driven.IndexStore,
	embedder driven.EmbeddingService,
	generator driven.TextGenerator,
	logger *slog.Logger,
	metrics driven.Metrics,
) (*RAGPipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	if store == nil || embedder == nil || generator == nil {
		return nil, fmt.Errorf("%w: index store, embedder and generator are required", domain.ErrInvalidInput)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if strings.TrimSpace(cfg.Refusal) == "" {
		cfg.Refusal = domain.DefaultRefusal
	}

	start := time.Now()
	idx, err := vectorindex.Load(ctx, store, cfg.Location)
	if err != nil {
		return nil, err
	}
	if err := idx.Fingerprint().CheckCompatible(embedder.Model(), embedder.Dimensions()); err != nil {
		return nil, err
	}

	logger.Info("RAG pipeline initialized",
		"location", cfg.Location,
		"chunks", idx.Len(),
		"dimensions", idx.Dimensions(),
		"model", idx.Fingerprint().EmbeddingModel,
		"top_k", cfg.TopK,
		"duration", time.Since(start),
	)

	return &RAGPipeline{
		cfg:       cfg,
		index:     idx,
		embedder:  embedder,
		generator: generator,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Fingerprint describes the loaded index
func (p *RAGPipeline) Fingerprint() domain.IndexFingerprint {
	return p.index.Fingerprint()
}

// Config returns the effective retrieval settings
func (p *RAGPipeline) Config() RAGConfig {
	return p.cfg
}

// Retrieve embeds the query and returns the k most similar chunks
func (p *RAGPipeline) Retrieve(ctx context.Context, query string, k int) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	vecs, err := p.embedder.Embed(embedCtx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrieval, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one query", domain.ErrRetrieval, len(vecs))
	}
	p.metrics.ObserveStage("embed_query", time.Since(start))

	start = time.Now()
	result, err := p.index.Search(vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	p.metrics.ObserveStage("search", time.Since(start))
	return result, nil
}

// Answer retrieves context for the query and asks the generator for a
// grounded answer. A weak best match short-circuits to the refusal phrase.
func (p *RAGPipeline) Answer(ctx context.Context, query string) (*domain.Answer, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		p.metrics.CountAnswer(OutcomeInvalid)
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}

	result, err := p.Retrieve(ctx, query, p.cfg.TopK)
	if err != nil {
		return nil, p.fail("retrieval failed", query, err)
	}

	answer := &domain.Answer{Query: query}

	if p.cfg.MinScore > 0 && result.TopScore() < p.cfg.MinScore {
		p.logger.Info("no relevant context, refusing",
			"top_score", result.TopScore(),
			"min_score", p.cfg.MinScore,
		)
		answer.Text = p.cfg.Refusal
		answer.Refused = true
		answer.Took = time.Since(start)
		p.metrics.CountAnswer(OutcomeRefused)
		return answer, nil
	}
	answer.Sources = result.Chunks

	prompt := BuildPrompt(query, result.Chunks, p.cfg.Refusal)

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	genStart := time.Now()
	text, err := p.generator.Generate(genCtx, prompt)
	if err != nil {
		return nil, p.fail("generation failed", query, fmt.Errorf("%w: %w", domain.ErrGeneration, err))
	}
	p.metrics.ObserveStage("generate", time.Since(genStart))

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, p.fail("generation failed", query, fmt.Errorf("%w: empty response", domain.ErrGeneration))
	}

	answer.Text = text
	answer.Refused = isRefusal(text, p.cfg.Refusal)
	answer.Took = time.Since(start)

	outcome := OutcomeAnswered
	if answer.Refused {
		outcome = OutcomeRefused
	}
	p.metrics.CountAnswer(outcome)
	p.logger.Info("answered query",
		"sources", len(answer.Sources),
		"top_score", result.TopScore(),
		"refused", answer.Refused,
		"duration", answer.Took,
	)
	return answer, nil
}

// fail logs the full error chain and stack at the pipeline boundary
func (p *RAGPipeline) fail(msg, query string, err error) error {
	p.metrics.CountAnswer(OutcomeError)
	p.logger.Error(msg,
		"query", query,
		"error", err,
		"stack", string(rtdebug.Stack()),
	)
	return err
}
