package domain

import (
	"fmt"
	"strconv"
)

// Metadata keys attached to documents and chunks.
const (
	MetaSource      = "source"
	MetaChunkID     = "chunk_id"
	MetaStartOffset = "start_index"
)

// Document is a normalized text document read from the ingestion directory.
// It is immutable once ingested.
type Document struct {
	ID       string            `json:"id"` // Source path
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewDocument creates a document whose metadata records its source path
func NewDocument(path, content string) *Document {
	return &Document{
		ID:      path,
		Content: content,
		Metadata: map[string]string{
			MetaSource: path,
		},
	}
}

// Chunk is a bounded span of a document's text, the unit indexed and retrieved.
// Identity is (DocumentID, StartOffset).
type Chunk struct {
	ID          string            `json:"id"`
	DocumentID  string            `json:"document_id"`
	Content     string            `json:"content"`
	Position    int               `json:"position"`     // Chunk position within document
	StartOffset int               `json:"start_offset"` // Byte offset into the document text
	EndOffset   int               `json:"end_offset"`
	Metadata    map[string]string `json:"metadata"`
}

// ChunkID builds the stable identifier of a chunk. It doubles as the
// citation label shown to the generative model.
func ChunkID(documentID string, startOffset int) string {
	return fmt.Sprintf("%s#%d", documentID, startOffset)
}

// NewChunk creates a chunk of doc covering content at [start, end).
// The document metadata is copied so chunks never share maps.
func NewChunk(doc *Document, content string, position, start, end int) *Chunk {
	id := ChunkID(doc.ID, start)
	meta := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[MetaChunkID] = id
	meta[MetaStartOffset] = strconv.Itoa(start)

	return &Chunk{
		ID:          id,
		DocumentID:  doc.ID,
		Content:     content,
		Position:    position,
		StartOffset: start,
		EndOffset:   end,
		Metadata:    meta,
	}
}

// Source returns the source path the chunk came from
func (c *Chunk) Source() string {
	if s, ok := c.Metadata[MetaSource]; ok {
		return s
	}
	return c.DocumentID
}
