package driving

import (
	"context"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// AnswerService answers natural-language questions against the loaded index
type AnswerService interface {
	// Retrieve returns the top-k chunks most similar to the query
	Retrieve(ctx context.Context, query string, k int) (*domain.RetrievalResult, error)

	// Answer retrieves context for the query and synthesises a grounded answer
	Answer(ctx context.Context, query string) (*domain.Answer, error)

	// Fingerprint describes the index the service was loaded from
	Fingerprint() domain.IndexFingerprint
}
