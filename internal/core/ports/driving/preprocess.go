package driving

import (
	"context"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// PreprocessService converts raw source files into plain-text documents
type PreprocessService interface {
	// Convert normalises every file under src into dst.
	// Per-file failures are reported, not fatal.
	Convert(ctx context.Context, src, dst string) (*domain.PreprocessReport, error)
}
