package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/faqbot/internal/postprocessors"
)

const testLocation = "vector_store/index.json"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeDocs creates files named by the map keys under a fresh temp dir
func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

type ingestFixture struct {
	svc      *IngestionService
	store    *mocks.MockIndexStore
	lock     *mocks.MockDistributedLock
	embedder *mocks.MockEmbeddingService
}

func newIngestFixture(t *testing.T, mutate func(*IngestionConfig)) *ingestFixture {
	t.Helper()
	pipeline, err := postprocessors.NewChunkingPipeline(postprocessors.DefaultChunkConfig())
	require.NoError(t, err)

	f := &ingestFixture{
		store:    mocks.NewMockIndexStore(),
		lock:     mocks.NewMockDistributedLock(),
		embedder: mocks.NewMockEmbeddingService(),
	}
	cfg := IngestionConfig{
		Store:    f.store,
		Lock:     f.lock,
		Pipeline: pipeline,
		Embedder: f.embedder,
		Logger:   discardLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.svc = NewIngestionService(cfg)
	return f
}

// groundedGenerator imitates a model that follows the prompt rules: it
// answers from the first context passage that mentions a keyword of the
// question and cites it, otherwise it refuses.
func groundedGenerator(prompt string) (string, error) {
	question := section(prompt, "Question:\n", "\n")
	ctxBlock := section(prompt, "Context:\n", "Question:\n")

	for _, passage := range strings.Split(ctxBlock, "\n\n") {
		label, body, ok := strings.Cut(strings.TrimSpace(passage), "\n")
		if !ok {
			continue
		}
		for _, w := range strings.Fields(strings.ToLower(strings.Trim(question, "?"))) {
			if len(w) > 4 && strings.Contains(strings.ToLower(body), w) {
				return strings.TrimSpace(body) + " " + label, nil
			}
		}
	}
	return domain.DefaultRefusal, nil
}

func section(s, start, end string) string {
	_, after, ok := strings.Cut(s, start)
	if !ok {
		return ""
	}
	before, _, _ := strings.Cut(after, end)
	return before
}

func buildTestIndex(t *testing.T, embedder *mocks.MockEmbeddingService, files map[string]string) (*mocks.MockIndexStore, string) {
	t.Helper()
	dir := writeDocs(t, files)
	f := newIngestFixture(t, func(c *IngestionConfig) { c.Embedder = embedder })
	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	return f.store, dir
}
