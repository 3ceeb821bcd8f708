package driven

import (
	"context"
)

// TextGenerator produces an answer for a fully assembled prompt.
// It is treated as an opaque remote call that may fail.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMService is a generative model handle
type LLMService interface {
	TextGenerator

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
