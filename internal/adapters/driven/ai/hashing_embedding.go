package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Ensure HashingEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashingEmbedding)(nil)

// DefaultHashingDimensions is the vector width of the local embedder
const DefaultHashingDimensions = 384

var hashingTokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashingEmbedding is a local bag-of-words embedder using signed feature
// hashing. It needs no vocabulary or network access and is fully
// deterministic, so ingestion and serving always agree.
type HashingEmbedding struct {
	dimensions int
	stopwords  map[string]struct{}
}

// NewHashingEmbedding creates a hashing embedder. dims <= 0 selects the default.
func NewHashingEmbedding(dims int) *HashingEmbedding {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingEmbedding{
		dimensions: dims,
		stopwords:  defaultStopwords(),
	}
}

// Embed generates embeddings for multiple texts
func (h *HashingEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a search query
func (h *HashingEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(query), nil
}

// Dimensions returns the embedding dimension size
func (h *HashingEmbedding) Dimensions() int {
	return h.dimensions
}

// Model returns the model name, which encodes the dimension count
func (h *HashingEmbedding) Model() string {
	return fmt.Sprintf("hashing-bow-%d", h.dimensions)
}

// HealthCheck always succeeds
func (h *HashingEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (h *HashingEmbedding) Close() error {
	return nil
}

func (h *HashingEmbedding) vector(text string) []float32 {
	counts := make(map[string]int)
	for _, tok := range h.tokenize(text) {
		counts[tok]++
	}

	vec := make([]float64, h.dimensions)
	for tok, n := range counts {
		hasher := fnv.New64a()
		hasher.Write([]byte(tok))
		sum := hasher.Sum64()

		bucket := int(sum % uint64(h.dimensions))
		weight := 1 + math.Log(float64(n)) // sublinear tf
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[bucket] += weight
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.dimensions)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (h *HashingEmbedding) tokenize(text string) []string {
	raw := hashingTokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := h.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "what", "who", "whom", "which", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
