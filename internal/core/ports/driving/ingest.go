package driving

import (
	"context"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// IngestionService builds a vector index from a directory of documents
type IngestionService interface {
	// BuildIndex reads, chunks and embeds every document under dir and
	// persists the resulting index at location.
	// Nothing is written unless the whole run succeeds.
	BuildIndex(ctx context.Context, dir, location string) (*domain.IngestionReport, error)
}
