package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/repository"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/storage"
)

// fakeStorage is an in-memory ObjectStorage for orchestrator tests.
type fakeStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	uploadErrs []error // consumed one per Upload call
	deleteErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Upload(ctx context.Context, clientID, uploadID string, r io.Reader, size int64, contentType string, progress storage.ProgressFunc) (string, error) {
	f.mu.Lock()
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		f.mu.Unlock()
		if err != nil {
			return "", err
		}
	} else {
		f.mu.Unlock()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if progress != nil && size > 0 {
		progress(100)
	}

	location := fmt.Sprintf("%s/%s", clientID, uploadID)
	f.mu.Lock()
	f.objects[location] = data
	f.mu.Unlock()
	return location, nil
}

func (f *fakeStorage) Download(ctx context.Context, location string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[location]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, location)
	delete(f.objects, location)
	return nil
}

func (f *fakeStorage) Exists(ctx context.Context, location string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[location]
	return ok, nil
}

func (f *fakeStorage) object(location string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[location]
	return data, ok
}

func newTestService(t *testing.T, store storage.ObjectStorage) (*Service, repository.Repository) {
	t.Helper()
	repo, err := repository.NewCSVRepository(filepath.Join(t.TempDir(), "uploads.csv"))
	require.NoError(t, err)
	svc := NewService(store, repo, NewCompressor(), NewTracker(),
		WithRetryPolicy(3, time.Millisecond))
	return svc, repo
}

func csvPayload(size int) []byte {
	row := []byte("col1,col2,col3\nval1,val2,val3\n")
	data := bytes.Repeat(row, size/len(row)+1)
	return data[:size]
}

func TestCreateSetsDefaults(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())

	u, err := svc.Create(context.Background(), "c1", "a.csv", 1024, "text/csv")
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "c1", u.ClientID)
	assert.Equal(t, models.StatusPending, u.Status)
	assert.Equal(t, u.CreatedAt.Add(models.RetentionPeriod), u.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC(), u.CreatedAt, 5*time.Second)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())
	ctx := context.Background()

	tests := []struct {
		name        string
		clientID    string
		fileName    string
		size        int64
		contentType string
	}{
		{"empty client", "", "a.csv", 10, "text/csv"},
		{"empty file name", "c1", "", 10, "text/csv"},
		{"empty content type", "c1", "a.csv", 10, ""},
		{"negative size", "c1", "a.csv", -1, "text/csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.clientID, tt.fileName, tt.size, tt.contentType)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestProcessCompressesLargeCSV(t *testing.T) {
	store := newFakeStorage()
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 2_000_000, "text/csv")
	require.NoError(t, err)

	payload := csvPayload(2_000_000)
	processed, err := svc.Process(ctx, u.ID, bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, processed.Status)
	assert.True(t, processed.IsCompressed)
	assert.Equal(t, int64(2_000_000), processed.OriginalSize)
	assert.Less(t, processed.CompressedSize, int64(2_000_000))
	assert.Equal(t, "c1/"+u.ID, processed.StorageLocation)
	assert.Equal(t, 100, processed.ProgressPercentage)
	assert.NotNil(t, processed.CompletedAt)

	// Stored bytes must decompress back to the original payload.
	stored, ok := store.object("c1/" + u.ID)
	require.True(t, ok)
	decompressed, err := NewCompressor().Decompress(ctx, bytes.NewReader(stored))
	require.NoError(t, err)
	got, err := io.ReadAll(decompressed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Terminal state is durable and the tracker entry is released.
	durable, found, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusCompleted, durable.Status)
	assert.False(t, svc.tracker.IsActive(u.ID))
}

func TestProcessSmallUploadSkipsCompression(t *testing.T) {
	store := newFakeStorage()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "small.csv", 500, "text/csv")
	require.NoError(t, err)

	payload := csvPayload(500)
	processed, err := svc.Process(ctx, u.ID, bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, processed.Status)
	assert.False(t, processed.IsCompressed)

	stored, ok := store.object("c1/" + u.ID)
	require.True(t, ok)
	assert.Equal(t, payload, stored, "uncompressed uploads are stored verbatim")
}

func TestProcessUnknownUpload(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())
	_, err := svc.Process(context.Background(), "no-such-id", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessFailureMarksFailed(t *testing.T) {
	store := newFakeStorage()
	store.uploadErrs = []error{errors.New("connection refused")}
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	// Non-seekable stream: a single attempt, no in-process retry.
	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	_, err = svc.Process(ctx, u.ID, oneShotReader(csvPayload(500)))
	require.Error(t, err)
	var transferErr *TransferError
	assert.ErrorAs(t, err, &transferErr)

	durable, found, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusFailed, durable.Status)
	assert.Contains(t, durable.LastError, "connection refused")
	assert.Equal(t, 1, durable.RetryCount)
	assert.NotNil(t, durable.LastRetryAt)
}

func TestProcessRetriesSeekableStream(t *testing.T) {
	store := newFakeStorage()
	store.uploadErrs = []error{errors.New("timeout"), errors.New("timeout")}
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	// Compressed uploads are seekable, so transient failures retry.
	u, err := svc.Create(ctx, "c1", "a.csv", 2_000_000, "text/csv")
	require.NoError(t, err)

	processed, err := svc.Process(ctx, u.ID, bytes.NewReader(csvPayload(2_000_000)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, processed.Status)
	assert.Equal(t, 2, processed.RetryCount)
	assert.Contains(t, processed.LastError, "timeout")
}

func TestProcessRejectsTerminalUpload(t *testing.T) {
	store := newFakeStorage()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)
	_, err = svc.Process(ctx, u.ID, bytes.NewReader(csvPayload(500)))
	require.NoError(t, err)

	_, err = svc.Process(ctx, u.ID, bytes.NewReader(csvPayload(500)))
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestProcessFailedUploadCanBeReinvoked(t *testing.T) {
	store := newFakeStorage()
	store.uploadErrs = []error{errors.New("connection refused")}
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	// One-shot stream, so the first invocation fails outright.
	_, err = svc.Process(ctx, u.ID, oneShotReader(csvPayload(500)))
	require.Error(t, err)

	durable, _, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, durable.Status)

	// A Failed record re-enters the lifecycle on a fresh invocation.
	payload := csvPayload(500)
	processed, err := svc.Process(ctx, u.ID, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, processed.Status)
	assert.Equal(t, 1, processed.RetryCount, "earlier failure bookkeeping is kept")

	stored, ok := store.object("c1/" + u.ID)
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestProcessRejectsCancelledUpload(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, u.ID))

	_, err = svc.Process(ctx, u.ID, bytes.NewReader(csvPayload(500)))
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestStatusPrefersLiveCopy(t *testing.T) {
	svc, repo := newTestService(t, newFakeStorage())
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	svc.tracker.UpdateStatus(u.ID, models.StatusUploading)
	svc.tracker.UpdateProgress(u.ID, 250, 50)

	live, found, err := svc.Status(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusUploading, live.Status)
	assert.Equal(t, 50, live.ProgressPercentage)

	// The durable copy still says Pending.
	durable, found, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusPending, durable.Status)
}

func TestCancelRemovesRemoteObject(t *testing.T) {
	store := newFakeStorage()
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	// Simulate a partially transferred upload with a recorded location.
	location := "c1/" + u.ID
	store.objects[location] = []byte("partial")
	u.Status = models.StatusUploading
	u.StorageLocation = location
	_, err = repo.Update(ctx, u)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, u.ID))

	durable, found, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusCancelled, durable.Status)
	assert.Contains(t, store.deleted, location)
	assert.False(t, svc.tracker.IsActive(u.ID))
}

func TestCancelSurvivesCleanupFailure(t *testing.T) {
	store := newFakeStorage()
	store.deleteErr = errors.New("backend down")
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)
	u.Status = models.StatusUploading
	u.StorageLocation = "c1/" + u.ID
	_, err = repo.Update(ctx, u)
	require.NoError(t, err)

	// Remote cleanup failure must not fail the cancellation.
	require.NoError(t, svc.Cancel(ctx, u.ID))

	durable, _, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, durable.Status)
}

func TestCancelUnknownUpload(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())
	assert.ErrorIs(t, svc.Cancel(context.Background(), "no-such-id"), ErrNotFound)
}

func TestCompleteFromExternalTransfer(t *testing.T) {
	store := newFakeStorage()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	// Object not there yet: record left unchanged for a later retry.
	unchanged, err := svc.Complete(ctx, u.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, unchanged.Status)
	assert.Empty(t, unchanged.StorageLocation)

	// Once the resumable-transfer layer has stored the object, the
	// completion check succeeds.
	store.objects["c1/"+u.ID] = []byte("assembled")
	completed, err := svc.Complete(ctx, u.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Equal(t, "c1/"+u.ID, completed.StorageLocation)
	assert.NotNil(t, completed.CompletedAt)
}

func TestCompleteDoesNotResurrectCancelledUpload(t *testing.T) {
	store := newFakeStorage()
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	// Cancel while the best-effort remote delete fails, leaving the
	// object behind at the backend.
	location := "c1/" + u.ID
	store.objects[location] = []byte("partial")
	u.Status = models.StatusUploading
	u.StorageLocation = location
	_, err = repo.Update(ctx, u)
	require.NoError(t, err)
	store.deleteErr = errors.New("backend down")
	require.NoError(t, svc.Cancel(ctx, u.ID))

	_, err = svc.Complete(ctx, u.ID, "c1")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	durable, _, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, durable.Status)
}

func TestCompleteWrongClient(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	_, err = svc.Complete(ctx, u.ID, "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteWrongClientLeavesRecordIntact(t *testing.T) {
	svc, repo := newTestService(t, newFakeStorage())
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, u.ID, "someone-else")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeleteRemovesRecordAndObject(t *testing.T) {
	store := newFakeStorage()
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)
	_, err = svc.Process(ctx, u.ID, bytes.NewReader(csvPayload(500)))
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, u.ID, "c1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Contains(t, store.deleted, "c1/"+u.ID)
}

func TestDeleteMissingUpload(t *testing.T) {
	svc, _ := newTestService(t, newFakeStorage())
	deleted, err := svc.Delete(context.Background(), "no-such-id", "c1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDownloadDecompresses(t *testing.T) {
	store := newFakeStorage()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 2_000_000, "text/csv")
	require.NoError(t, err)
	payload := csvPayload(2_000_000)
	_, err = svc.Process(ctx, u.ID, bytes.NewReader(payload))
	require.NoError(t, err)

	rc, record, err := svc.Download(ctx, u.ID, "c1")
	require.NoError(t, err)
	defer rc.Close()

	assert.True(t, record.IsCompressed)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	store := newFakeStorage()
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	expired, err := svc.Create(ctx, "c1", "old.csv", 500, "text/csv")
	require.NoError(t, err)
	fresh, err := svc.Create(ctx, "c1", "new.csv", 500, "text/csv")
	require.NoError(t, err)

	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	_, err = repo.Update(ctx, expired)
	require.NoError(t, err)

	require.NoError(t, svc.CleanupExpired(ctx))

	_, found, err := repo.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, found, "expired record should be removed")

	_, found, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, found, "unexpired record should be untouched")
}

func TestQuarantineDeletesObjectAndFailsRecord(t *testing.T) {
	store := newFakeStorage()
	svc, repo := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Create(ctx, "c1", "a.csv", 500, "text/csv")
	require.NoError(t, err)
	_, err = svc.Process(ctx, u.ID, bytes.NewReader(csvPayload(500)))
	require.NoError(t, err)

	require.NoError(t, svc.Quarantine(ctx, u.ID, "virus detected: Eicar-Test-Signature"))

	durable, _, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, durable.Status)
	assert.Contains(t, durable.LastError, "Eicar-Test-Signature")
	assert.Empty(t, durable.StorageLocation)
	assert.Contains(t, store.deleted, "c1/"+u.ID)
}

// oneShotReader wraps a byte slice in a reader that hides Seek, so the
// orchestrator sees a stream it cannot rewind.
func oneShotReader(data []byte) io.Reader {
	return io.MultiReader(bytes.NewReader(data))
}
