package driven

import "context"

// IndexStore persists serialized vector indexes as opaque blobs.
// A location names one index; writing replaces it wholesale.
type IndexStore interface {
	// Save stores the blob at location, replacing any previous index
	Save(ctx context.Context, location string, blob []byte) error

	// Load returns the blob stored at location.
	// Returns domain.ErrIndexNotFound if nothing is stored there.
	Load(ctx context.Context, location string) ([]byte, error)

	// Ping checks if the storage backend is healthy
	Ping(ctx context.Context) error
}
