package upload

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
)

// Tracker holds the live copy of every upload active in this process.
// It is an advisory cache: the repository stays the durable source of
// truth, and entries are removed once a terminal state has been
// persisted. Safe for concurrent use; per-identifier updates are
// last-write-wins.
type Tracker struct {
	active *xsync.MapOf[string, models.Upload]
}

func NewTracker() *Tracker {
	return &Tracker{active: xsync.NewMapOf[string, models.Upload]()}
}

// Track registers an upload as active. An existing entry for the same
// identifier is left untouched.
func (t *Tracker) Track(u models.Upload) {
	t.active.LoadOrStore(u.ID, u)
}

// Get returns the live copy, if the upload is active in this process.
func (t *Tracker) Get(id string) (models.Upload, bool) {
	return t.active.Load(id)
}

// IsActive reports whether the upload is tracked.
func (t *Tracker) IsActive(id string) bool {
	_, ok := t.active.Load(id)
	return ok
}

// Remove drops the entry. Called once the terminal state is durable or
// on explicit cancellation.
func (t *Tracker) Remove(id string) {
	t.active.Delete(id)
}

func (t *Tracker) update(id string, fn func(u models.Upload) models.Upload) {
	t.active.Compute(id, func(u models.Upload, loaded bool) (models.Upload, bool) {
		if !loaded {
			// Not tracked; don't resurrect the entry.
			return u, true
		}
		return fn(u), false
	})
}

// UpdateProgress records bytes moved and the derived percentage.
func (t *Tracker) UpdateProgress(id string, bytesUploaded int64, percentage int) {
	t.update(id, func(u models.Upload) models.Upload {
		u.BytesUploaded = bytesUploaded
		u.ProgressPercentage = percentage
		return u
	})
}

// UpdateStatus moves the live copy to the given lifecycle state.
func (t *Tracker) UpdateStatus(id string, status models.UploadStatus) {
	t.update(id, func(u models.Upload) models.Upload {
		u.Status = status
		return u
	})
}

// UpdateError records a failed attempt.
func (t *Tracker) UpdateError(id string, errMsg string) {
	now := time.Now().UTC()
	t.update(id, func(u models.Upload) models.Upload {
		u.LastError = errMsg
		u.RetryCount++
		u.LastRetryAt = &now
		return u
	})
}

// UpdateCompression records that the compression gate acted.
func (t *Tracker) UpdateCompression(id string, originalSize, compressedSize int64) {
	t.update(id, func(u models.Upload) models.Upload {
		u.IsCompressed = true
		u.OriginalSize = originalSize
		u.CompressedSize = compressedSize
		return u
	})
}
