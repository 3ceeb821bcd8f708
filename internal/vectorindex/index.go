// Package vectorindex is an exact nearest-neighbour index over chunk
// embeddings. Vectors are L2-normalised on insert and on query, so inner
// product equals cosine similarity.
package vectorindex

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// Entry pairs a chunk with its embedding
type Entry struct {
	Chunk  *domain.Chunk
	Vector []float32
}

// Index is an immutable flat index. It is safe for concurrent searches.
type Index struct {
	fingerprint domain.IndexFingerprint
	chunks      []*domain.Chunk
	vectors     []float32 // row-major, len(chunks) * dims
}

// Build creates an index from entries in insertion order.
// The fingerprint's Dimensions must match every vector.
func Build(fp domain.IndexFingerprint, entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if fp.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: index dimensions must be positive, got %d", domain.ErrInvalidInput, fp.Dimensions)
	}
	if fp.Format == "" {
		fp.Format = domain.IndexFormat
	}
	fp.Normalized = true

	dims := fp.Dimensions
	idx := &Index{
		fingerprint: fp,
		chunks:      make([]*domain.Chunk, len(entries)),
		vectors:     make([]float32, len(entries)*dims),
	}
	for i, e := range entries {
		if e.Chunk == nil {
			return nil, fmt.Errorf("%w: entry %d has no chunk", domain.ErrInvalidInput, i)
		}
		if len(e.Vector) != dims {
			return nil, fmt.Errorf("%w: entry %d (%s) has %d dimensions, index has %d",
				domain.ErrEmbeddingMismatch, i, e.Chunk.ID, len(e.Vector), dims)
		}
		idx.chunks[i] = e.Chunk
		row := idx.vectors[i*dims : (i+1)*dims]
		copy(row, e.Vector)
		normalize(row)
	}
	return idx, nil
}

// Len returns the number of indexed chunks
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Dimensions returns the vector width
func (idx *Index) Dimensions() int {
	return idx.fingerprint.Dimensions
}

// Fingerprint returns the embedding space the index was built in
func (idx *Index) Fingerprint() domain.IndexFingerprint {
	return idx.fingerprint
}

// Chunk returns the i-th chunk in insertion order
func (idx *Index) Chunk(i int) *domain.Chunk {
	return idx.chunks[i]
}

// Vector returns a copy of the i-th normalised vector
func (idx *Index) Vector(i int) []float32 {
	dims := idx.Dimensions()
	return slices.Clone(idx.vectors[i*dims : (i+1)*dims])
}

// Search returns the k chunks with the highest cosine similarity to query,
// best first. Ties keep insertion order. k larger than the index returns
// every chunk.
func (idx *Index) Search(query []float32, k int) (*domain.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	dims := idx.Dimensions()
	if len(query) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrEmbeddingMismatch, len(query), dims)
	}

	q := slices.Clone(query)
	normalize(q)

	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, len(idx.chunks))
	for i := range idx.chunks {
		hits[i] = hit{pos: i, score: dot(q, idx.vectors[i*dims:(i+1)*dims])}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(hits))
	result := &domain.RetrievalResult{Chunks: make([]domain.ScoredChunk, k)}
	for i := 0; i < k; i++ {
		result.Chunks[i] = domain.ScoredChunk{
			Chunk: idx.chunks[hits[i].pos],
			Score: hits[i].score,
		}
	}
	return result, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize scales v to unit length in place. Zero vectors are left as-is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
