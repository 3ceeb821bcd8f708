package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/custodia-labs/faqbot/internal/core/ports/driving"
	"github.com/custodia-labs/faqbot/internal/normalisers"
	"github.com/custodia-labs/faqbot/internal/vectorindex"
)

// Verify interface compliance
var _ driving.IngestionService = (*IngestionService)(nil)

// Ingestion defaults
const (
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
	DefaultLockTTL     = 30 * time.Minute
)

// DefaultGlobs selects the documents picked up from the ingestion directory
var DefaultGlobs = []string{"*.md", "*.txt"}

// IngestionService turns a directory of documents into a persisted vector index.
// It implements the ingestion flow:
//  1. Discover documents matching the globs
//  2. Take the ingestion lock for the target location and keep renewing it
//  3. Read documents in sorted path order and chunk them
//  4. Embed chunks in ordered, concurrent batches
//  5. Build the index and persist it
type IngestionService struct {
	store       driven.IndexStore
	lock        driven.DistributedLock
	pipeline    driven.PostProcessorPipeline
	embedder    driven.EmbeddingService
	normalisers driven.NormaliserRegistry
	metrics     driven.Metrics
	logger      *slog.Logger

	globs       []string
	batchSize   int
	concurrency int
	rateLimit   float64
	lockTTL     time.Duration
}

// IngestionConfig holds dependencies and tuning for IngestionService.
type IngestionConfig struct {
	Store    driven.IndexStore
	Lock     driven.DistributedLock
	Pipeline driven.PostProcessorPipeline
	Embedder driven.EmbeddingService
	// Normalisers converts file contents by MIME type before chunking.
	// Nil keeps the raw text.
	Normalisers driven.NormaliserRegistry
	Metrics     driven.Metrics
	Logger      *slog.Logger

	Globs       []string
	BatchSize   int
	Concurrency int
	// RateLimit caps embedding requests per second; 0 disables the limit
	RateLimit float64
	// LockTTL is the lease on the ingestion lock, renewed every LockTTL/3
	// until the index is persisted. Defaults to DefaultLockTTL.
	LockTTL time.Duration
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(cfg IngestionConfig) *IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics driven.Metrics = driven.NopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	globs := cfg.Globs
	if len(globs) == 0 {
		globs = DefaultGlobs
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}

	return &IngestionService{
		store:       cfg.Store,
		lock:        cfg.Lock,
		pipeline:    cfg.Pipeline,
		embedder:    cfg.Embedder,
		normalisers: cfg.Normalisers,
		metrics:     metrics,
		logger:      logger,
		globs:       globs,
		batchSize:   batchSize,
		concurrency: concurrency,
		rateLimit:   cfg.RateLimit,
		lockTTL:     lockTTL,
	}
}

// BuildIndex reads every matching document under dir, embeds its chunks and
// persists the index at location. Nothing is written unless every step succeeds.
// A build that loses its lock midway fails with ErrIngestionInProgress.
func (s *IngestionService) BuildIndex(ctx context.Context, dir, location string) (*domain.IngestionReport, error) {
	start := time.Now()

	paths, err := s.discover(dir)
	if err != nil {
		return nil, err
	}

	lease, runCtx, err := s.acquireLease(ctx, location)
	if err != nil {
		return nil, err
	}
	defer lease.release(ctx)

	report, err := s.build(runCtx, start, dir, location, paths)
	if err != nil {
		if lost := leaseLost(runCtx); lost != nil {
			return nil, lost
		}
		return nil, err
	}
	return report, nil
}

func (s *IngestionService) build(ctx context.Context, start time.Time, dir, location string, paths []string) (*domain.IngestionReport, error) {
	docs, err := s.loadDocuments(ctx, paths)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded documents", "dir", dir, "documents", len(docs))

	chunks := s.chunk(docs)
	s.logger.Info("split documents", "chunks", len(chunks))
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text in %s", domain.ErrNoDocuments, dir)
	}

	embedStart := time.Now()
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage("ingest_embed", time.Since(embedStart))

	entries := make([]vectorindex.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorindex.Entry{Chunk: c, Vector: vectors[i]}
	}
	fp := domain.NewIndexFingerprint(s.embedder.Model(), s.embedder.Dimensions())
	idx, err := vectorindex.Build(fp, entries)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if lost := leaseLost(ctx); lost != nil {
		return nil, lost
	}
	size, err := vectorindex.Persist(ctx, s.store, location, idx)
	if err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	took := time.Since(start)
	s.metrics.ObserveStage("ingest_total", took)
	s.metrics.CountIngestion(len(docs), len(chunks))
	s.logger.Info("index saved",
		"location", location,
		"documents", len(docs),
		"chunks", len(chunks),
		"bytes", size,
		"duration", took,
	)

	return &domain.IngestionReport{
		Location:   location,
		Documents:  len(docs),
		Chunks:     len(chunks),
		Dimensions: fp.Dimensions,
		Model:      fp.EmbeddingModel,
		Bytes:      size,
		Seconds:    took.Seconds(),
	}, nil
}

// discover lists files under dir whose relative path matches a glob.
// Hidden files and directories are skipped. Paths are returned sorted.
func (s *IngestionService) discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s does not exist", domain.ErrNoDocuments, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrNoDocuments, dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if s.matches(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: nothing matching %v in %s", domain.ErrNoDocuments, s.globs, dir)
	}

	sort.Strings(paths)
	return paths, nil
}

func (s *IngestionService) matches(rel string) bool {
	for _, g := range s.globs {
		if ok, _ := filepath.Match(g, rel); ok {
			return true
		}
	}
	return false
}

func (s *IngestionService) loadDocuments(ctx context.Context, paths []string) ([]*domain.Document, error) {
	docs := make([]*domain.Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		text := string(raw)
		if s.normalisers != nil {
			text, err = s.normalise(path, raw)
			if err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(text) == "" {
			s.logger.Debug("skipping empty document", "path", path)
			continue
		}
		docs = append(docs, domain.NewDocument(filepath.ToSlash(path), text))
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: every matching document is empty", domain.ErrNoDocuments)
	}
	return docs, nil
}

func (s *IngestionService) normalise(path string, raw []byte) (string, error) {
	mimeType := normalisers.DetectMIMEType(path, raw)
	n := s.normalisers.Get(mimeType)
	if n == nil {
		return "", fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedFormat, path, mimeType)
	}
	text, err := n.Normalise(raw, mimeType)
	if err != nil {
		return "", fmt.Errorf("normalise %s: %w", path, err)
	}
	return text, nil
}

// chunk splits documents in order, so chunk order is the index insertion order
func (s *IngestionService) chunk(docs []*domain.Document) []*domain.Chunk {
	var chunks []*domain.Chunk
	for _, doc := range docs {
		for _, c := range s.pipeline.Process(doc.Content) {
			chunks = append(chunks, domain.NewChunk(doc, c.Content, c.Position, c.StartOffset, c.EndOffset))
		}
	}
	return chunks
}

// embed embeds chunk texts in batches. Batches run concurrently but each
// writes into its own slot range, so vectors line up with chunks.
func (s *IngestionService) embed(ctx context.Context, chunks []*domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	var limiter *rate.Limiter
	if s.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rateLimit), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for lo := 0; lo < len(chunks); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(chunks))
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			texts := make([]string, hi-lo)
			for i := range texts {
				texts[i] = chunks[lo+i].Content
			}
			embs, err := s.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", lo, hi-1, err)
			}
			if len(embs) != len(texts) {
				return fmt.Errorf("%w: embedder returned %d vectors for %d texts",
					domain.ErrEmbeddingMismatch, len(embs), len(texts))
			}
			copy(vectors[lo:hi], embs)
			s.logger.Debug("embedded batch", "from", lo, "to", hi)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
