package models

import (
	"time"
)

// UploadStatus is the lifecycle state of an upload record.
type UploadStatus string

const (
	StatusPending     UploadStatus = "Pending"
	StatusInProgress  UploadStatus = "InProgress"
	StatusCompressing UploadStatus = "Compressing"
	StatusValidating  UploadStatus = "Validating"
	StatusUploading   UploadStatus = "Uploading"
	StatusRetrying    UploadStatus = "Retrying"
	StatusCompleted   UploadStatus = "Completed"
	StatusFailed      UploadStatus = "Failed"
	StatusExpired     UploadStatus = "Expired"
	StatusCancelled   UploadStatus = "Cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s UploadStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// RetentionPeriod is how long an upload record is kept before the
// expiry sweep removes it.
const RetentionPeriod = 30 * 24 * time.Hour

// Upload is the central upload record. The repository owns the durable
// copy; the progress tracker mirrors it while the upload is active.
type Upload struct {
	ID              string       `json:"id"`
	ClientID        string       `json:"client_id"`
	FileName        string       `json:"file_name"`
	ContentType     string       `json:"content_type"`
	FileSize        int64        `json:"file_size"`
	StorageLocation string       `json:"storage_location,omitempty"`
	Status          UploadStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`

	ProgressPercentage int   `json:"progress_percentage"`
	BytesUploaded      int64 `json:"bytes_uploaded"`

	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`

	IsCompressed   bool  `json:"is_compressed"`
	OriginalSize   int64 `json:"original_size,omitempty"`
	CompressedSize int64 `json:"compressed_size,omitempty"`
}

// Expired reports whether the record's retention window has passed.
func (u Upload) Expired(now time.Time) bool {
	return !u.ExpiresAt.After(now)
}
