package upload

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/repository"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/storage"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// Service is the upload lifecycle orchestrator. It drives records from
// creation through optional compression and transfer to a terminal
// state, keeps the progress tracker current, and owns the expiry sweep.
type Service struct {
	storage      storage.ObjectStorage
	repo         repository.Repository
	compressor   *Compressor
	tracker      *Tracker
	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithRetryPolicy bounds the in-process transfer retry loop.
func WithRetryPolicy(maxRetries int, backoff time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.retryBackoff = backoff
	}
}

func NewService(store storage.ObjectStorage, repo repository.Repository, compressor *Compressor, tracker *Tracker, opts ...Option) *Service {
	s := &Service{
		storage:      store,
		repo:         repo,
		compressor:   compressor,
		tracker:      tracker,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a new upload record in Pending state and registers
// it with the progress tracker.
func (s *Service) Create(ctx context.Context, clientID, fileName string, fileSize int64, contentType string) (models.Upload, error) {
	if clientID == "" {
		return models.Upload{}, &ValidationError{Reason: "client ID is required"}
	}
	if fileName == "" {
		return models.Upload{}, &ValidationError{Reason: "file name is required"}
	}
	if contentType == "" {
		return models.Upload{}, &ValidationError{Reason: "content type is required"}
	}
	if fileSize < 0 {
		return models.Upload{}, &ValidationError{Reason: "file size must not be negative"}
	}

	now := time.Now().UTC()
	u := models.Upload{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		FileName:    fileName,
		ContentType: contentType,
		FileSize:    fileSize,
		Status:      models.StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.RetentionPeriod),
	}

	if err := s.repo.Add(ctx, u); err != nil {
		return models.Upload{}, err
	}
	s.tracker.Track(u)
	return u, nil
}

// Process runs an upload's content through the compression gate and the
// storage adapter, reporting progress throughout. On success the record
// is Completed and released from the tracker; on failure the error is
// recorded, the record is Failed and the failure is returned. Transient
// transfer failures are retried in-process with exponential backoff when
// the stream can be rewound; beyond that, retry is a caller-driven
// re-invocation. A Failed record re-enters the lifecycle on such a
// re-invocation, keeping its accumulated retry bookkeeping; Completed,
// Cancelled and Expired records are rejected.
func (s *Service) Process(ctx context.Context, id string, r io.Reader) (models.Upload, error) {
	u, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Upload{}, err
	}
	if !ok {
		return models.Upload{}, ErrNotFound
	}
	switch u.Status {
	case models.StatusCompleted, models.StatusCancelled, models.StatusExpired:
		return u, &ValidationError{Reason: fmt.Sprintf("upload is already %s", u.Status)}
	}

	s.tracker.Track(u)
	s.tracker.UpdateStatus(id, models.StatusInProgress)
	u.Status = models.StatusInProgress

	uploadStream := r
	uploadSize := u.FileSize
	uploadContentType := u.ContentType

	if s.compressor.ShouldCompress(u.FileSize, u.ContentType) {
		s.tracker.UpdateStatus(id, models.StatusCompressing)
		u.Status = models.StatusCompressing

		compressed, compressedSize, cerr := s.compressor.Compress(ctx, r, u.FileSize)
		if cerr != nil {
			return s.fail(ctx, u, cerr)
		}

		s.tracker.UpdateCompression(id, u.FileSize, compressedSize)
		u.IsCompressed = true
		u.OriginalSize = u.FileSize
		u.CompressedSize = compressedSize
		uploadStream = compressed
		uploadSize = compressedSize
		uploadContentType = "application/gzip"
	}

	s.tracker.UpdateStatus(id, models.StatusUploading)
	u.Status = models.StatusUploading

	progress := func(pct int) {
		s.tracker.UpdateProgress(id, uploadSize*int64(pct)/100, pct)
	}

	location, err := s.transferWithRetry(ctx, &u, uploadStream, uploadSize, uploadContentType, progress)
	if err != nil {
		return s.fail(ctx, u, err)
	}

	now := time.Now().UTC()
	u.StorageLocation = location
	u.Status = models.StatusCompleted
	u.CompletedAt = &now
	u.ProgressPercentage = 100
	u.BytesUploaded = uploadSize

	if _, err := s.repo.Update(ctx, u); err != nil {
		return s.fail(ctx, u, fmt.Errorf("failed to persist completed upload: %w", err))
	}
	s.tracker.Remove(id)
	return u, nil
}

// transferWithRetry attempts the storage upload, rewinding and retrying
// on transient failure when the stream is seekable. Cancellation is
// never retried.
func (s *Service) transferWithRetry(ctx context.Context, u *models.Upload, r io.Reader, size int64, contentType string, progress storage.ProgressFunc) (string, error) {
	seeker, canRewind := r.(io.Seeker)

	for attempt := 0; ; attempt++ {
		location, err := s.storage.Upload(ctx, u.ClientID, u.ID, r, size, contentType, progress)
		if err == nil {
			return location, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !canRewind || attempt >= s.maxRetries {
			return "", &TransferError{Op: "upload", Err: err}
		}

		now := time.Now().UTC()
		u.RetryCount++
		u.LastError = err.Error()
		u.LastRetryAt = &now
		s.tracker.UpdateError(u.ID, err.Error())
		s.tracker.UpdateStatus(u.ID, models.StatusRetrying)
		u.Status = models.StatusRetrying
		log.Printf("[UPLOAD] transfer attempt %d for %s failed, retrying: %v", attempt+1, u.ID, err)

		if err := sleepCtx(ctx, s.retryBackoff<<attempt); err != nil {
			return "", err
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", &TransferError{Op: "upload", Err: err}
		}
		s.tracker.UpdateStatus(u.ID, models.StatusUploading)
		u.Status = models.StatusUploading
	}
}

// fail records the error on the tracker and the durable record, marks
// the upload Failed and returns the original error.
func (s *Service) fail(ctx context.Context, u models.Upload, cause error) (models.Upload, error) {
	now := time.Now().UTC()
	s.tracker.UpdateError(u.ID, cause.Error())
	s.tracker.UpdateStatus(u.ID, models.StatusFailed)

	u.Status = models.StatusFailed
	u.LastError = cause.Error()
	u.RetryCount++
	u.LastRetryAt = &now

	// Persist failure state even when the caller's context is gone.
	persistCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if _, err := s.repo.Update(persistCtx, u); err != nil {
		log.Printf("[UPLOAD] warning: failed to persist failure state for %s: %v", u.ID, err)
	}
	return u, cause
}

// Status returns the live tracked copy when the upload is active in this
// process; otherwise the durable record.
func (s *Service) Status(ctx context.Context, id string) (models.Upload, bool, error) {
	if u, ok := s.tracker.Get(id); ok {
		return u, true, nil
	}
	return s.repo.GetByID(ctx, id)
}

// List returns every upload owned by the client.
func (s *Service) List(ctx context.Context, clientID string) ([]models.Upload, error) {
	return s.repo.GetByClient(ctx, clientID)
}

// Cancel moves a non-terminal upload to Cancelled, releases the tracker
// entry and best-effort removes any partially transferred object.
// Cancelling an already cancelled upload is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) error {
	u, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if u.Status == models.StatusCancelled {
		return nil
	}
	if u.Status.IsTerminal() {
		return &ValidationError{Reason: fmt.Sprintf("upload is already %s", u.Status)}
	}

	if s.tracker.IsActive(id) {
		s.tracker.UpdateStatus(id, models.StatusCancelled)
		s.tracker.Remove(id)
	}

	u.Status = models.StatusCancelled
	if _, err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	if u.StorageLocation != "" {
		if err := s.storage.Delete(ctx, u.StorageLocation); err != nil {
			// Cancellation must succeed locally even when cleanup fails.
			log.Printf("[UPLOAD] warning: failed to delete object %s for cancelled upload %s: %v", u.StorageLocation, id, err)
		}
	}
	return nil
}

// Complete confirms an upload whose bytes arrived through the external
// resumable-transfer layer. The referenced object must exist at the
// backend; when it doesn't, the record is left unchanged so the caller
// can retry the check. Completing an already Completed upload is a
// no-op; any other terminal record is rejected.
func (s *Service) Complete(ctx context.Context, id, clientID string) (models.Upload, error) {
	u, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Upload{}, err
	}
	if !ok || u.ClientID != clientID {
		return models.Upload{}, ErrNotFound
	}
	if u.Status == models.StatusCompleted {
		return u, nil
	}
	if u.Status.IsTerminal() {
		// A leftover object (e.g. a failed best-effort delete during
		// cancellation) must not bring the record back to life.
		return u, &ValidationError{Reason: fmt.Sprintf("upload is already %s", u.Status)}
	}

	location := fmt.Sprintf("%s/%s", clientID, id)
	exists, err := s.storage.Exists(ctx, location)
	if err != nil {
		return models.Upload{}, &TransferError{Op: "exists", Err: err}
	}
	if !exists {
		return u, nil
	}

	now := time.Now().UTC()
	u.Status = models.StatusCompleted
	u.StorageLocation = location
	u.CompletedAt = &now
	u.ProgressPercentage = 100
	if _, err := s.repo.Update(ctx, u); err != nil {
		return models.Upload{}, err
	}
	s.tracker.Remove(id)
	return u, nil
}

// Delete removes the upload's remote object (best-effort) and its
// durable record. Returns false when the record does not exist or the
// client does not own it; that is a normal outcome, not an error.
func (s *Service) Delete(ctx context.Context, id, clientID string) (bool, error) {
	u, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok || u.ClientID != clientID {
		return false, nil
	}

	if u.StorageLocation != "" {
		if err := s.storage.Delete(ctx, u.StorageLocation); err != nil {
			log.Printf("[UPLOAD] warning: failed to delete object %s for upload %s: %v", u.StorageLocation, id, err)
		}
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	s.tracker.Remove(id)
	return deleted, nil
}

// Download returns the stored object's stream, transparently
// decompressed when the compression gate acted on the upload.
func (s *Service) Download(ctx context.Context, id, clientID string) (io.ReadCloser, models.Upload, error) {
	u, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, models.Upload{}, err
	}
	if !ok || u.ClientID != clientID || u.StorageLocation == "" {
		return nil, models.Upload{}, ErrNotFound
	}

	rc, err := s.storage.Download(ctx, u.StorageLocation)
	if err != nil {
		return nil, models.Upload{}, &TransferError{Op: "download", Err: err}
	}

	if !u.IsCompressed {
		return rc, u, nil
	}
	defer rc.Close()
	decompressed, err := s.compressor.Decompress(ctx, rc)
	if err != nil {
		return nil, models.Upload{}, err
	}
	return io.NopCloser(decompressed), u, nil
}

// Quarantine deletes an upload's object after a failed content scan and
// marks the record failed with the scan verdict.
func (s *Service) Quarantine(ctx context.Context, id, reason string) error {
	u, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if u.StorageLocation != "" {
		if err := s.storage.Delete(ctx, u.StorageLocation); err != nil {
			return &TransferError{Op: "delete", Err: err}
		}
	}

	u.Status = models.StatusFailed
	u.LastError = reason
	u.StorageLocation = ""
	_, err = s.repo.Update(ctx, u)
	return err
}

// CleanupExpired removes every record past its retention window,
// running the same deletion path as an explicit delete. Per-record
// failures are logged and do not abort the sweep.
func (s *Service) CleanupExpired(ctx context.Context) error {
	expired, err := s.repo.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	removed := 0
	for _, u := range expired {
		if _, err := s.Delete(ctx, u.ID, u.ClientID); err != nil {
			log.Printf("[CLEANUP] warning: failed to remove expired upload %s: %v", u.ID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("[CLEANUP] removed %d expired uploads", removed)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
