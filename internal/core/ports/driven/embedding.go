package driven

import (
	"context"
)

// Embedder turns texts into fixed-length vectors.
// Implementations must be deterministic for a fixed model and safe for
// concurrent calls.
type Embedder interface {
	// Embed generates embeddings for multiple texts, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingService generates text embeddings
type EmbeddingService interface {
	Embedder

	// EmbedQuery generates an embedding for a search query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
