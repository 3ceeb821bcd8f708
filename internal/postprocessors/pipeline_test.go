package postprocessors

import (
	"strings"
	"testing"

	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// upperProcessor upper-cases chunk content (test helper).
type upperProcessor struct{ order int }

func (u *upperProcessor) Process(chunks []driven.Chunk) []driven.Chunk {
	out := make([]driven.Chunk, len(chunks))
	for i, c := range chunks {
		c.Content = strings.ToUpper(c.Content)
		out[i] = c
	}
	return out
}

func (u *upperProcessor) Name() string { return "upper" }
func (u *upperProcessor) Order() int   { return u.order }

func mustChunker(t *testing.T, config ChunkConfig) *Chunker {
	t.Helper()
	c, err := NewChunker(config)
	if err != nil {
		t.Fatalf("NewChunker(%+v): %v", config, err)
	}
	return c
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if len(p.processors) != 0 {
		t.Errorf("expected empty processors, got %d", len(p.processors))
	}
}

func TestPipeline_Process_EmptyContent(t *testing.T) {
	p := DefaultPipeline()

	chunks := p.Process("")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestPipeline_Process_SmallContent(t *testing.T) {
	p := DefaultPipeline()

	content := "Hello, world!"
	chunks := p.Process(content)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != content {
		t.Errorf("expected %q, got %q", content, chunks[0].Content)
	}
	if chunks[0].Position != 0 {
		t.Errorf("expected position 0, got %d", chunks[0].Position)
	}
	if chunks[0].StartOffset != 0 {
		t.Errorf("expected start offset 0, got %d", chunks[0].StartOffset)
	}
	if chunks[0].EndOffset != len(content) {
		t.Errorf("expected end offset %d, got %d", len(content), chunks[0].EndOffset)
	}
}

func TestPipeline_Process_LargeContent(t *testing.T) {
	p, err := NewChunkingPipeline(ChunkConfig{MaxChunkSize: 100, Overlap: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := strings.Repeat("x", 250)
	chunks := p.Process(content)

	want := [][2]int{{0, 100}, {80, 180}, {160, 250}}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Position != i {
			t.Errorf("chunk %d: expected position %d, got %d", i, i, chunk.Position)
		}
		if chunk.StartOffset != want[i][0] || chunk.EndOffset != want[i][1] {
			t.Errorf("chunk %d: expected [%d,%d), got [%d,%d)",
				i, want[i][0], want[i][1], chunk.StartOffset, chunk.EndOffset)
		}
	}
}

func TestPipeline_Process_OrderedProcessors(t *testing.T) {
	p := NewPipeline()

	// Add in wrong order - should be sorted by Order()
	p.Add(&upperProcessor{order: 5})
	p.Add(mustChunker(t, DefaultChunkConfig()))

	chunks := p.Process("Test content")

	names := p.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 processors, got %d", len(names))
	}
	if names[0] != "chunker" {
		t.Errorf("expected first processor 'chunker', got %s", names[0])
	}
	if names[1] != "upper" {
		t.Errorf("expected second processor 'upper', got %s", names[1])
	}
	if len(chunks) != 1 || chunks[0].Content != "TEST CONTENT" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestNewChunkingPipeline_InvalidConfig(t *testing.T) {
	if _, err := NewChunkingPipeline(ChunkConfig{MaxChunkSize: 10, Overlap: 10}); err == nil {
		t.Fatal("expected error for overlap >= size")
	}
}

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()

	names := p.List()
	if len(names) != 1 {
		t.Fatalf("expected 1 processor in default pipeline, got %d", len(names))
	}
	if names[0] != "chunker" {
		t.Errorf("expected 'chunker', got %s", names[0])
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.PostProcessorPipeline = NewPipeline()
	var _ driven.PostProcessor = mustChunker(t, DefaultChunkConfig())
}
