package repository

import (
	"context"
	"errors"
	"time"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
)

// ErrDuplicateID is returned by Add when a record with the same
// identifier already exists. Identifiers are caller-assigned UUIDs, so
// hitting this means a misuse, not a race worth retrying.
var ErrDuplicateID = errors.New("upload id already exists")

// Repository is the durable store of upload records. Implementations
// serialize access so that, per identifier, no stale read interleaves
// with an in-flight write.
type Repository interface {
	// Add inserts a new record and persists it.
	Add(ctx context.Context, u models.Upload) error

	// GetByID returns the record, or false if the identifier is unknown.
	GetByID(ctx context.Context, id string) (models.Upload, bool, error)

	// GetByClient returns every record owned by the client, newest first.
	GetByClient(ctx context.Context, clientID string) ([]models.Upload, error)

	// Update replaces the record with a matching identifier and persists.
	// Returns false when the identifier is unknown.
	Update(ctx context.Context, u models.Upload) (bool, error)

	// Delete removes the record and persists. Returns false when the
	// identifier is unknown.
	Delete(ctx context.Context, id string) (bool, error)

	// ListExpired returns every record whose expiry has passed at now.
	ListExpired(ctx context.Context, now time.Time) ([]models.Upload, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
