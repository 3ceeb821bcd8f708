package domain

import "testing"

func TestNewDocument(t *testing.T) {
	doc := NewDocument("data/faq.md", "hello")

	if doc.ID != "data/faq.md" {
		t.Errorf("expected ID data/faq.md, got %s", doc.ID)
	}
	if doc.Metadata[MetaSource] != "data/faq.md" {
		t.Errorf("expected source metadata, got %v", doc.Metadata)
	}
}

func TestNewChunk(t *testing.T) {
	doc := NewDocument("data/faq.md", "The capital of Wonderland is Elsewhere.")
	chunk := NewChunk(doc, doc.Content[4:], 1, 4, len(doc.Content))

	if chunk.ID != "data/faq.md#4" {
		t.Errorf("expected ID data/faq.md#4, got %s", chunk.ID)
	}
	if chunk.DocumentID != doc.ID {
		t.Errorf("expected document ID %s, got %s", doc.ID, chunk.DocumentID)
	}
	if chunk.Metadata[MetaChunkID] != chunk.ID {
		t.Errorf("expected chunk_id metadata %s, got %s", chunk.ID, chunk.Metadata[MetaChunkID])
	}
	if chunk.Metadata[MetaStartOffset] != "4" {
		t.Errorf("expected start_index 4, got %s", chunk.Metadata[MetaStartOffset])
	}
	if chunk.Source() != "data/faq.md" {
		t.Errorf("expected source data/faq.md, got %s", chunk.Source())
	}

	// Chunk metadata must not alias the document's map
	chunk.Metadata["extra"] = "x"
	if _, ok := doc.Metadata["extra"]; ok {
		t.Error("chunk metadata should be a copy")
	}
}

func TestChunk_SourceFallback(t *testing.T) {
	chunk := &Chunk{DocumentID: "doc-1"}
	if chunk.Source() != "doc-1" {
		t.Errorf("expected fallback to document ID, got %s", chunk.Source())
	}
}

func TestAnswer_SourceDocuments(t *testing.T) {
	doc := NewDocument("a.md", "alpha beta")
	answer := &Answer{
		Text: "alpha",
		Sources: []ScoredChunk{
			{Chunk: NewChunk(doc, "alpha", 0, 0, 5), Score: 0.9},
			{Chunk: nil, Score: 0.1},
		},
	}

	docs := answer.SourceDocuments()
	if len(docs) != 1 {
		t.Fatalf("expected 1 source document, got %d", len(docs))
	}
	if docs[0].Content != "alpha" {
		t.Errorf("expected content alpha, got %s", docs[0].Content)
	}
	if docs[0].Metadata[MetaSource] != "a.md" {
		t.Errorf("expected source a.md, got %s", docs[0].Metadata[MetaSource])
	}
}

func TestRetrievalResult_TopScore(t *testing.T) {
	var empty *RetrievalResult
	if empty.Len() != 0 || empty.TopScore() != 0 {
		t.Error("nil result should be empty")
	}

	r := &RetrievalResult{Chunks: []ScoredChunk{{Score: 0.8}, {Score: 0.3}}}
	if r.TopScore() != 0.8 {
		t.Errorf("expected top score 0.8, got %f", r.TopScore())
	}
}
