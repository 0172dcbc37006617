package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
)

var csvHeader = []string{
	"id", "client_id", "file_name", "content_type", "file_size",
	"storage_location", "status", "created_at", "expires_at", "completed_at",
	"progress_percentage", "bytes_uploaded", "retry_count", "last_error",
	"last_retry_at", "is_compressed", "original_size", "compressed_size",
}

// CSVRepository keeps the working set in memory and rewrites a CSV file
// on every mutation. A single mutex serializes all traffic against the
// working set and its durable backing; simple and correct for a
// single-process deployment at the cost of read/write parallelism.
type CSVRepository struct {
	mu       sync.Mutex
	filePath string
	uploads  []models.Upload
}

// NewCSVRepository opens (or creates) the CSV file at filePath and loads
// the working set from it.
func NewCSVRepository(filePath string) (*CSVRepository, error) {
	r := &CSVRepository{filePath: filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := r.persist(); err != nil {
			return nil, err
		}
		return r, nil
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CSVRepository) Add(ctx context.Context, u models.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, existing := range r.uploads {
		if existing.ID == u.ID {
			return ErrDuplicateID
		}
	}

	r.uploads = append(r.uploads, u)
	if err := r.persist(); err != nil {
		// Roll back the in-memory append so memory and disk agree.
		r.uploads = r.uploads[:len(r.uploads)-1]
		return fmt.Errorf("failed to persist upload record: %w", err)
	}
	return nil
}

func (r *CSVRepository) GetByID(ctx context.Context, id string) (models.Upload, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Upload{}, false, err
	}
	for _, u := range r.uploads {
		if u.ID == id {
			return u, true, nil
		}
	}
	return models.Upload{}, false, nil
}

func (r *CSVRepository) GetByClient(ctx context.Context, clientID string) ([]models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result []models.Upload
	for _, u := range r.uploads {
		if u.ClientID == clientID {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *CSVRepository) Update(ctx context.Context, u models.Upload) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	for i, existing := range r.uploads {
		if existing.ID == u.ID {
			prev := r.uploads[i]
			r.uploads[i] = u
			if err := r.persist(); err != nil {
				r.uploads[i] = prev
				return false, fmt.Errorf("failed to persist upload record: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *CSVRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	for i, existing := range r.uploads {
		if existing.ID == id {
			removed := r.uploads[i]
			r.uploads = append(r.uploads[:i], r.uploads[i+1:]...)
			if err := r.persist(); err != nil {
				r.uploads = append(r.uploads, removed)
				return false, fmt.Errorf("failed to persist upload record: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *CSVRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var expired []models.Upload
	for _, u := range r.uploads {
		if u.Expired(now) {
			expired = append(expired, u)
		}
	}
	return expired, nil
}

func (r *CSVRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(r.filePath)
	return err
}

// persist rewrites the whole working set. Writes go to a temp file first
// and are renamed into place so a failed write never half-replaces the
// backing file. Callers must hold the mutex.
func (r *CSVRepository) persist() error {
	records := make([][]string, 0, len(r.uploads)+1)
	records = append(records, csvHeader)
	for _, u := range r.uploads {
		records = append(records, encodeRecord(u))
	}

	tempFile := r.filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempFile, r.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace repository file: %w", err)
	}
	return nil
}

func (r *CSVRepository) load() error {
	f, err := os.Open(r.filePath)
	if err != nil {
		return fmt.Errorf("failed to open repository file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse repository file: %w", err)
	}

	uploads := make([]models.Upload, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		u, err := decodeRecord(record)
		if err != nil {
			return fmt.Errorf("failed to decode record %d: %w", i, err)
		}
		uploads = append(uploads, u)
	}
	r.uploads = uploads
	return nil
}

func encodeRecord(u models.Upload) []string {
	return []string{
		u.ID,
		u.ClientID,
		u.FileName,
		u.ContentType,
		strconv.FormatInt(u.FileSize, 10),
		u.StorageLocation,
		string(u.Status),
		u.CreatedAt.UTC().Format(time.RFC3339Nano),
		u.ExpiresAt.UTC().Format(time.RFC3339Nano),
		encodeTimePtr(u.CompletedAt),
		strconv.Itoa(u.ProgressPercentage),
		strconv.FormatInt(u.BytesUploaded, 10),
		strconv.Itoa(u.RetryCount),
		u.LastError,
		encodeTimePtr(u.LastRetryAt),
		strconv.FormatBool(u.IsCompressed),
		strconv.FormatInt(u.OriginalSize, 10),
		strconv.FormatInt(u.CompressedSize, 10),
	}
}

func decodeRecord(record []string) (models.Upload, error) {
	var u models.Upload
	var err error

	u.ID = record[0]
	u.ClientID = record[1]
	u.FileName = record[2]
	u.ContentType = record[3]
	if u.FileSize, err = strconv.ParseInt(record[4], 10, 64); err != nil {
		return u, err
	}
	u.StorageLocation = record[5]
	u.Status = models.UploadStatus(record[6])
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, record[7]); err != nil {
		return u, err
	}
	if u.ExpiresAt, err = time.Parse(time.RFC3339Nano, record[8]); err != nil {
		return u, err
	}
	if u.CompletedAt, err = decodeTimePtr(record[9]); err != nil {
		return u, err
	}
	if u.ProgressPercentage, err = strconv.Atoi(record[10]); err != nil {
		return u, err
	}
	if u.BytesUploaded, err = strconv.ParseInt(record[11], 10, 64); err != nil {
		return u, err
	}
	if u.RetryCount, err = strconv.Atoi(record[12]); err != nil {
		return u, err
	}
	u.LastError = record[13]
	if u.LastRetryAt, err = decodeTimePtr(record[14]); err != nil {
		return u, err
	}
	if u.IsCompressed, err = strconv.ParseBool(record[15]); err != nil {
		return u, err
	}
	if u.OriginalSize, err = strconv.ParseInt(record[16], 10, 64); err != nil {
		return u, err
	}
	if u.CompressedSize, err = strconv.ParseInt(record[17], 10, 64); err != nil {
		return u, err
	}
	return u, nil
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
