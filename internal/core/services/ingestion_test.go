package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/normalisers"
	"github.com/custodia-labs/faqbot/internal/vectorindex"
)

func TestNewIngestionService_Defaults(t *testing.T) {
	svc := NewIngestionService(IngestionConfig{})

	assert.Equal(t, DefaultGlobs, svc.globs)
	assert.Equal(t, DefaultBatchSize, svc.batchSize)
	assert.Equal(t, DefaultConcurrency, svc.concurrency)
	assert.Equal(t, DefaultLockTTL, svc.lockTTL)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.metrics)
}

func TestBuildIndex_SingleDocument(t *testing.T) {
	dir := writeDocs(t, map[string]string{"wonderland.md": "The capital of Wonderland is Elsewhere."})
	f := newIngestFixture(t, nil)

	report, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 64, report.Dimensions)
	assert.Equal(t, "mock-embedding-model", report.Model)
	assert.Equal(t, testLocation, report.Location)
	assert.Positive(t, report.Bytes)
	assert.Equal(t, 1, f.store.Saves())
	assert.False(t, f.lock.IsHeld("ingest:"+testLocation), "lock released after the run")

	idx, err := vectorindex.Load(context.Background(), f.store, testLocation)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	chunk := idx.Chunk(0)
	path := filepath.ToSlash(filepath.Join(dir, "wonderland.md"))
	assert.Equal(t, "The capital of Wonderland is Elsewhere.", chunk.Content)
	assert.Equal(t, path+"#0", chunk.ID)
	assert.Equal(t, path, chunk.Source())
}

func TestBuildIndex_SortedOrderAndGlobs(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"b.md":          "Bravo document.",
		"a.txt":         "Alpha document.",
		"c.pdf":         "not matched",
		".hidden.md":    "hidden",
		"sub/nested.md": "nested files are outside the top-level globs",
	})
	f := newIngestFixture(t, nil)

	report, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	require.Equal(t, 2, report.Documents)

	idx, err := vectorindex.Load(context.Background(), f.store, testLocation)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
	assert.True(t, strings.HasSuffix(idx.Chunk(0).DocumentID, "/a.txt"))
	assert.True(t, strings.HasSuffix(idx.Chunk(1).DocumentID, "/b.md"))
}

func TestBuildIndex_LongDocumentChunked(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Alice followed the white rabbit down the hole. ")
	}
	text := b.String()
	dir := writeDocs(t, map[string]string{"alice.md": text})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.BatchSize = 2 })

	report, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	assert.Greater(t, report.Chunks, 5)

	idx, err := vectorindex.Load(context.Background(), f.store, testLocation)
	require.NoError(t, err)

	var rebuilt strings.Builder
	prevEnd := 0
	for i := 0; i < idx.Len(); i++ {
		c := idx.Chunk(i)
		assert.LessOrEqual(t, len(c.Content), 1000)
		assert.Equal(t, i, c.Position)
		rebuilt.WriteString(c.Content[prevEnd-c.StartOffset:])
		prevEnd = c.EndOffset
	}
	assert.Equal(t, text, rebuilt.String())
	assert.Equal(t, (report.Chunks+1)/2, f.embedder.Calls(), "one embed call per batch")
}

func TestBuildIndex_Deterministic(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("Paragraph about the Queen of Hearts and her croquet ground.\n\n")
	}
	dir := writeDocs(t, map[string]string{
		"one.md":   b.String(),
		"two.md":   "The Cheshire Cat grins.",
		"three.md": "The Mad Hatter hosts a tea party.",
	})

	run := func() []byte {
		f := newIngestFixture(t, func(c *IngestionConfig) {
			c.BatchSize = 1
			c.Concurrency = 8
		})
		_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
		require.NoError(t, err)
		blob, err := f.store.Load(context.Background(), testLocation)
		require.NoError(t, err)
		return blob
	}

	assert.Equal(t, run(), run(), "persisted index must be byte-identical")
}

func TestBuildIndex_NoDocuments(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
	}{
		{"missing directory", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }},
		{"empty directory", func(t *testing.T) string { return t.TempDir() }},
		{"no matching files", func(t *testing.T) string {
			return writeDocs(t, map[string]string{"report.pdf": "%PDF"})
		}},
		{"only blank documents", func(t *testing.T) string {
			return writeDocs(t, map[string]string{"a.md": "", "b.txt": "  \n\n "})
		}},
		{"path is a file", func(t *testing.T) string {
			dir := writeDocs(t, map[string]string{"a.md": "x"})
			return filepath.Join(dir, "a.md")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, nil)

			_, err := f.svc.BuildIndex(context.Background(), tt.dir(t), testLocation)
			assert.ErrorIs(t, err, domain.ErrNoDocuments)
			assert.Equal(t, 0, f.store.Saves(), "no index written")
			assert.Equal(t, 0, f.embedder.Calls())
		})
	}
}

func TestBuildIndex_LockHeld(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, nil)
	f.lock.SetLockHeld("ingest:"+testLocation, time.Minute)

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	assert.ErrorIs(t, err, domain.ErrIngestionInProgress)
	assert.Equal(t, 0, f.store.Saves())
	assert.True(t, f.lock.IsHeld("ingest:"+testLocation), "foreign lock left alone")
}

func TestBuildIndex_LockError(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, nil)
	f.lock.AcquireFn = func(string, time.Duration) (bool, error) { return false, errors.New("redis down") }

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

// slowEmbedder returns unit vectors after holding each batch for d
func slowEmbedder(d time.Duration) func(texts []string) ([][]float32, error) {
	return func(texts []string) ([][]float32, error) {
		time.Sleep(d)
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = make([]float32, 64)
			out[i][0] = 1
		}
		return out, nil
	}
}

func TestBuildIndex_ExtendsLockWhileEmbedding(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.LockTTL = 60 * time.Millisecond })
	f.embedder.EmbedFn = slowEmbedder(150 * time.Millisecond)
	name := "ingest:" + testLocation

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Saves())
	assert.False(t, f.lock.IsHeld(name), "lock released after the run")

	extends := f.lock.Extends(name)
	assert.GreaterOrEqual(t, extends, 1, "lease renewed during a build longer than its TTL")
	for _, c := range f.lock.Calls() {
		if c.Op == "extend" {
			assert.Equal(t, 60*time.Millisecond, c.TTL)
		}
	}

	calls := f.lock.Calls()
	assert.Equal(t, "release", calls[len(calls)-1].Op, "renewal stops before release")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, extends, f.lock.Extends(name), "no renewal after the run")
}

func TestBuildIndex_LostLockAbortsBeforePersist(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.LockTTL = 30 * time.Millisecond })
	f.embedder.EmbedFn = slowEmbedder(100 * time.Millisecond)
	f.lock.ExtendFn = func(name string, _ time.Duration) error {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, name)
	}

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.ErrorIs(t, err, domain.ErrIngestionInProgress)
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)
	assert.Equal(t, 0, f.store.Saves(), "nothing written without the lock")
	assert.Equal(t, 1, f.lock.Extends("ingest:"+testLocation), "gives up on the first lost renewal")
}

func TestBuildIndex_TransientExtendErrorRetried(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.LockTTL = 90 * time.Millisecond })
	f.embedder.EmbedFn = slowEmbedder(150 * time.Millisecond)

	var failed atomic.Bool
	f.lock.ExtendFn = func(string, time.Duration) error {
		if failed.CompareAndSwap(false, true) {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Saves())
	assert.GreaterOrEqual(t, f.lock.Extends("ingest:"+testLocation), 2)
}

func TestBuildIndex_EmbedFailureWritesNothing(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha.", "b.md": "Bravo."})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.BatchSize = 1 })

	var calls atomic.Int32
	f.embedder.EmbedFn = func(texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("quota exceeded")
		}
		return [][]float32{make([]float32, 64)}, nil
	}

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 0, f.store.Saves())
	assert.False(t, f.lock.IsHeld("ingest:"+testLocation))
}

func TestBuildIndex_EmbedderWrongCount(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, nil)
	f.embedder.EmbedFn = func(texts []string) ([][]float32, error) { return nil, nil }

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	assert.Equal(t, 0, f.store.Saves())
}

func TestBuildIndex_WrongDimensions(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, nil)
	f.embedder.EmbedFn = func(texts []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0}}, nil
	}

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	assert.Equal(t, 0, f.store.Saves())
}

func TestBuildIndex_SaveFailure(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, nil)
	f.store.SaveFn = func(string, []byte) error { return errors.New("disk full") }

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestBuildIndex_Cancelled(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	f := newIngestFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.BuildIndex(ctx, dir, testLocation)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.store.Saves())
}

func TestBuildIndex_RateLimited(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha.", "b.md": "Bravo.", "c.md": "Charlie."})
	f := newIngestFixture(t, func(c *IngestionConfig) {
		c.BatchSize = 1
		c.RateLimit = 1000
	})

	report, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 3, f.embedder.Calls())
}

func TestBuildIndex_WithNormalisers(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"notes.txt": "Line   one\r\n\r\n\r\n\r\nLine two",
	})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.Normalisers = normalisers.DefaultRegistry() })

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)

	idx, err := vectorindex.Load(context.Background(), f.store, testLocation)
	require.NoError(t, err)
	assert.Equal(t, "Line one\n\nLine two", idx.Chunk(0).Content)
}

func TestBuildIndex_WithNormalisersRejectsBinary(t *testing.T) {
	dir := writeDocs(t, map[string]string{"data.txt": "abc\x00def"})
	f := newIngestFixture(t, func(c *IngestionConfig) { c.Normalisers = normalisers.DefaultRegistry() })

	_, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Equal(t, 0, f.store.Saves())
}

func TestBuildIndex_SkipsHiddenDirectories(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "Alpha."})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "x.md"), []byte("git"), 0o644))
	f := newIngestFixture(t, func(c *IngestionConfig) { c.Globs = []string{"*.md", ".git/*.md"} })

	report, err := f.svc.BuildIndex(context.Background(), dir, testLocation)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
}
