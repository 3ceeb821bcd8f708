package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/faqbot/internal/adapters/driven/ai"
	"github.com/custodia-labs/faqbot/internal/adapters/driven/filesystem"
	"github.com/custodia-labs/faqbot/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/faqbot/internal/adapters/driven/redis"
	"github.com/custodia-labs/faqbot/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/faqbot/internal/config"
	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/custodia-labs/faqbot/internal/core/services"
	"github.com/custodia-labs/faqbot/internal/logger"
	"github.com/custodia-labs/faqbot/internal/metrics"
	"github.com/custodia-labs/faqbot/internal/normalisers"
	"github.com/custodia-labs/faqbot/internal/postprocessors"
	"github.com/custodia-labs/faqbot/internal/runtime"
)

// app carries what every command needs once flags are parsed
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
	factory driven.AIServiceFactory
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	log, err := logger.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log
	if a.factory == nil {
		a.factory = ai.NewFactory()
	}
	return nil
}

// storage bundles the index store and ingestion lock of one backend
type storage struct {
	backend string
	store   driven.IndexStore
	lock    driven.DistributedLock
	closers []func() error
}

func (s *storage) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// openStorage connects the configured index backend. File and SQLite
// backends guard ingestion with lock files next to the index; Postgres
// and Redis use their own locking.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile, "":
		return &storage{
			backend: config.BackendFile,
			store:   filesystem.NewIndexStore(""),
			lock:    filesystem.NewLock(filepath.Dir(cfg.Paths.IndexLocation)),
		}, nil

	case config.BackendSQLite:
		st, err := sqlite.NewIndexStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storage{
			backend: config.BackendSQLite,
			store:   st,
			lock:    filesystem.NewLock(filepath.Dir(cfg.Storage.SQLitePath)),
			closers: []func() error{st.Close},
		}, nil

	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.Storage.DatabaseURL))
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &storage{
			backend: config.BackendPostgres,
			store:   postgres.NewIndexStore(db),
			lock:    postgres.NewAdvisoryLock(db),
			closers: []func() error{db.Close},
		}, nil

	case config.BackendRedis:
		client, err := redisadapter.Connect(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		return &storage{
			backend: config.BackendRedis,
			store:   redisadapter.NewIndexStore(client),
			lock:    redisadapter.NewLock(client),
			closers: []func() error{client.Close},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, cfg.Storage.Backend)
	}
}

// embeddingService builds the configured embedder and health checks it
func (a *app) embeddingService(ctx context.Context, state *runtime.State) (driven.EmbeddingService, error) {
	settings := a.cfg.EmbeddingSettings()
	svc, err := a.factory.CreateEmbeddingService(&settings)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured (missing API key?)",
			domain.ErrInvalidInput, settings.Provider)
	}
	if err := state.ValidateAndSetEmbedding(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// llmService builds the configured generator and pings it
func (a *app) llmService(ctx context.Context, state *runtime.State) (driven.LLMService, error) {
	settings := a.cfg.LLMSettings()
	svc, err := a.factory.CreateLLMService(&settings)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: llm provider %q is not configured (missing API key?)",
			domain.ErrInvalidInput, settings.Provider)
	}
	if err := state.ValidateAndSetLLM(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// ragConfig maps the retrieval section onto the pipeline config
func (a *app) ragConfig() services.RAGConfig {
	cfg := services.DefaultRAGConfig(a.cfg.Paths.IndexLocation)
	cfg.TopK = a.cfg.Retrieval.TopK
	cfg.MinScore = a.cfg.Retrieval.MinScore
	cfg.RequestTimeout = a.cfg.Retrieval.RequestTimeout
	cfg.Refusal = a.cfg.Retrieval.Refusal
	return cfg
}

// initPipeline loads the persisted index and publishes the answer pipeline
// on state. It must succeed before any question is served.
func (a *app) initPipeline(ctx context.Context, state *runtime.State, st *storage, m driven.Metrics) error {
	embedder, err := a.embeddingService(ctx, state)
	if err != nil {
		return fmt.Errorf("init embedding service: %w", err)
	}
	generator, err := a.llmService(ctx, state)
	if err != nil {
		return fmt.Errorf("init llm service: %w", err)
	}

	pipeline, err := services.NewRAGPipeline(ctx, a.ragConfig(), st.store, embedder, generator, a.logger, m)
	if err != nil {
		return fmt.Errorf("init RAG pipeline: %w", err)
	}
	return state.SetPipeline(pipeline)
}

// newIngestionService wires ingestion for the configured backend
func (a *app) newIngestionService(st *storage, embedder driven.EmbeddingService, m *metrics.Metrics) (*services.IngestionService, error) {
	pipeline, err := postprocessors.NewChunkingPipeline(postprocessors.ChunkConfig{
		MaxChunkSize:       a.cfg.Chunking.Size,
		Overlap:            a.cfg.Chunking.Overlap,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	})
	if err != nil {
		return nil, err
	}

	cfg := services.IngestionConfig{
		Store:       st.store,
		Lock:        st.lock,
		Pipeline:    pipeline,
		Embedder:    embedder,
		Normalisers: normalisers.DefaultRegistry(),
		Logger:      a.logger,
		Globs:       a.cfg.Ingest.Globs,
		BatchSize:   a.cfg.Ingest.BatchSize,
		Concurrency: a.cfg.Ingest.Concurrency,
		RateLimit:   a.cfg.Ingest.RateLimit,
		LockTTL:     a.cfg.Ingest.LockTTL,
	}
	if m != nil {
		cfg.Metrics = m
	}
	return services.NewIngestionService(cfg), nil
}
