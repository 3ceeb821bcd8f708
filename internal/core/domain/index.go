package domain

import "fmt"

// IndexFormat identifies the persisted vector index layout
const IndexFormat = "faqbot-index/v1"

// IndexFingerprint records the embedding space an index was built in.
// A serving embedder must match it exactly.
type IndexFingerprint struct {
	Format         string `json:"format"`
	EmbeddingModel string `json:"embedding_model"`
	Dimensions     int    `json:"dimensions"`
	Normalized     bool   `json:"normalized"`
}

// NewIndexFingerprint creates a fingerprint for the given embedding model
func NewIndexFingerprint(model string, dimensions int) IndexFingerprint {
	return IndexFingerprint{
		Format:         IndexFormat,
		EmbeddingModel: model,
		Dimensions:     dimensions,
		Normalized:     true,
	}
}

// CheckCompatible returns ErrEmbeddingMismatch when the serving embedder
// produces vectors from a different space than the index was built with.
func (f IndexFingerprint) CheckCompatible(model string, dimensions int) error {
	if f.Dimensions != dimensions {
		return fmt.Errorf("%w: index has %d dimensions, embedder %q produces %d",
			ErrEmbeddingMismatch, f.Dimensions, model, dimensions)
	}
	if f.EmbeddingModel != model {
		return fmt.Errorf("%w: index built with model %q, serving with %q",
			ErrEmbeddingMismatch, f.EmbeddingModel, model)
	}
	return nil
}

// IngestionReport summarises one ingestion run
type IngestionReport struct {
	Location   string  `json:"location"`
	Documents  int     `json:"documents"`
	Chunks     int     `json:"chunks"`
	Dimensions int     `json:"dimensions"`
	Model      string  `json:"model"`
	Bytes      int     `json:"bytes"`
	Seconds    float64 `json:"seconds"`
}

// PreprocessReport summarises one preprocessing run
type PreprocessReport struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}
