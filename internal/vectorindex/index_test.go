package vectorindex

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

func testChunk(i int) *domain.Chunk {
	doc := domain.NewDocument(fmt.Sprintf("doc-%d.md", i), "content")
	return domain.NewChunk(doc, fmt.Sprintf("chunk %d", i), 0, 0, 7)
}

func testFingerprint(dims int) domain.IndexFingerprint {
	return domain.NewIndexFingerprint("test-model", dims)
}

func buildIndex(t *testing.T, vectors ...[]float32) *Index {
	t.Helper()
	entries := make([]Entry, len(vectors))
	for i, v := range vectors {
		entries[i] = Entry{Chunk: testChunk(i), Vector: v}
	}
	idx, err := Build(testFingerprint(len(vectors[0])), entries)
	require.NoError(t, err)
	return idx
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := Build(testFingerprint(3), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	_, err := Build(testFingerprint(3), []Entry{
		{Chunk: testChunk(0), Vector: []float32{1, 0, 0}},
		{Chunk: testChunk(1), Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
}

func TestBuild_InvalidInput(t *testing.T) {
	_, err := Build(testFingerprint(0), []Entry{{Chunk: testChunk(0), Vector: nil}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Build(testFingerprint(2), []Entry{{Vector: []float32{1, 0}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuild_NormalizesVectors(t *testing.T) {
	idx := buildIndex(t, []float32{3, 4}, []float32{0, 0})

	v := idx.Vector(0)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, idx.Vector(1))
	assert.True(t, idx.Fingerprint().Normalized)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 2, idx.Dimensions())
}

func TestBuild_CopiesInput(t *testing.T) {
	vec := []float32{1, 0}
	idx := buildIndex(t, vec)
	vec[0] = -1

	assert.Equal(t, []float32{1, 0}, idx.Vector(0))
}

func TestSearch_OrdersBySimilarity(t *testing.T) {
	idx := buildIndex(t,
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
		[]float32{0.8, 0.6, 0},
		[]float32{0, 0, 1},
	)

	res, err := idx.Search([]float32{2, 0, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())

	assert.Equal(t, "chunk 0", res.Chunks[0].Chunk.Content)
	assert.InDelta(t, 1.0, res.Chunks[0].Score, 1e-6)
	assert.Equal(t, "chunk 2", res.Chunks[1].Chunk.Content)
	assert.InDelta(t, 0.8, res.Chunks[1].Score, 1e-6)
	assert.InDelta(t, 0.0, res.Chunks[2].Score, 1e-6)
	assert.InDelta(t, 1.0, res.TopScore(), 1e-6)
}

func TestSearch_MatchesBruteForce(t *testing.T) {
	const n, dims = 50, 8
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dims)
		for j := range v {
			v[j] = float32(math.Sin(float64(i*dims+j) * 0.7))
		}
		vectors[i] = v
	}
	idx := buildIndex(t, vectors...)
	query := []float32{0.3, -0.2, 0.9, 0.1, 0, 0.5, -0.7, 0.2}

	res, err := idx.Search(query, 5)
	require.NoError(t, err)
	require.Equal(t, 5, res.Len())

	for i := 1; i < res.Len(); i++ {
		assert.GreaterOrEqual(t, res.Chunks[i-1].Score, res.Chunks[i].Score)
	}

	// No excluded chunk scores above the last returned one.
	returned := make(map[string]bool)
	for _, sc := range res.Chunks {
		returned[sc.Chunk.ID] = true
	}
	floor := res.Chunks[res.Len()-1].Score
	q := append([]float32(nil), query...)
	normalize(q)
	for i := 0; i < n; i++ {
		if returned[idx.Chunk(i).ID] {
			continue
		}
		assert.LessOrEqual(t, dot(q, idx.Vector(i)), floor+1e-9)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := buildIndex(t,
		[]float32{0, 1},
		[]float32{1, 0},
		[]float32{1, 0},
		[]float32{1, 0},
	)

	res, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())
	assert.Equal(t, "chunk 1", res.Chunks[0].Chunk.Content)
	assert.Equal(t, "chunk 2", res.Chunks[1].Chunk.Content)
	assert.Equal(t, "chunk 3", res.Chunks[2].Chunk.Content)
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0}, []float32{0, 1})

	res, err := idx.Search([]float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len())
}

func TestSearch_InvalidK(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0})

	for _, k := range []int{0, -1} {
		_, err := idx.Search([]float32{1, 0}, k)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0})

	_, err := idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
}

func TestSearch_DoesNotMutateQuery(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0})
	query := []float32{3, 4}

	_, err := idx.Search(query, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, query)
}

func TestSearch_Concurrent(t *testing.T) {
	idx := buildIndex(t, []float32{1, 0}, []float32{0, 1}, []float32{1, 1})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := idx.Search([]float32{1, 0}, 2)
			assert.NoError(t, err)
			assert.Equal(t, "chunk 0", res.Chunks[0].Chunk.Content)
		}()
	}
	wg.Wait()
}
