package domain

import "time"

// DefaultTopK is the number of chunks retrieved per query
const DefaultTopK = 3

// DefaultRefusal is the phrase the generative model must answer with when
// the retrieved context does not contain the answer.
const DefaultRefusal = "I don't know."

// ScoredChunk is a retrieved chunk with its similarity to the query
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult holds the nearest chunks for a query vector, ordered by
// descending similarity. Ties keep index insertion order.
type RetrievalResult struct {
	Chunks []ScoredChunk `json:"chunks"`
}

// Len returns the number of retrieved chunks
func (r *RetrievalResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Chunks)
}

// TopScore returns the highest similarity, or 0 when nothing was retrieved
func (r *RetrievalResult) TopScore() float64 {
	if r.Len() == 0 {
		return 0
	}
	return r.Chunks[0].Score
}

// Answer is a generated answer together with the context it was grounded on.
// It only lives for the duration of one request.
type Answer struct {
	Query   string        `json:"query"`
	Text    string        `json:"answer"`
	Sources []ScoredChunk `json:"sources"`
	Refused bool          `json:"refused"`
	Took    time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}

// SourceDocument is the caller-facing citation evidence for an answer
type SourceDocument struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SourceDocuments converts the answer sources into citation evidence
func (a *Answer) SourceDocuments() []SourceDocument {
	docs := make([]SourceDocument, 0, len(a.Sources))
	for _, sc := range a.Sources {
		if sc.Chunk == nil {
			continue
		}
		docs = append(docs, SourceDocument{
			Content:  sc.Chunk.Content,
			Metadata: sc.Chunk.Metadata,
		})
	}
	return docs
}
