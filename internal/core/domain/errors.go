package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNoDocuments indicates the ingestion directory is missing or holds nothing to index
	ErrNoDocuments = errors.New("no documents found")

	// ErrEmptyCorpus indicates an index was requested from zero vectors
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrIngestionInProgress indicates another ingestion holds the index lock
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrLockNotHeld indicates a lock expired or was taken over by another owner
	ErrLockNotHeld = errors.New("lock not held")

	// ErrIndexNotFound indicates no persisted index exists at the location
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt indicates the persisted index cannot be parsed
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrEmbeddingMismatch indicates the index and the embedder use different vector spaces
	ErrEmbeddingMismatch = errors.New("embedding mismatch")

	// ErrPipelineNotInitialized indicates a query arrived before the pipeline was ready
	ErrPipelineNotInitialized = errors.New("RAG pipeline not initialized")

	// ErrRetrieval indicates embedding the query or searching the index failed
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the generative model call failed
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidQuery indicates an empty or malformed query
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnsupportedFormat indicates no normaliser can extract text from a file
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuery) || errors.Is(err, ErrInvalidInput)
}
