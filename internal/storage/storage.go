package storage

import (
	"context"
	"io"
)

// ProgressFunc receives transfer progress as a percentage in [0, 100],
// monotonic for a single transfer.
type ProgressFunc func(percentage int)

// ObjectStorage is the contract the orchestrator depends on for moving
// upload bytes. Locations are opaque backend keys; implementations key
// objects as "clientId/uploadId".
type ObjectStorage interface {
	// Upload streams r to the backend and returns the storage location.
	// The progress callback is optional and skipped when size is unknown
	// (<= 0).
	Upload(ctx context.Context, clientID, uploadID string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)

	// Download returns the object's byte stream.
	Download(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the object.
	Delete(ctx context.Context, location string) error

	// Exists reports whether an object is present at the location.
	Exists(ctx context.Context, location string) (bool, error)
}
