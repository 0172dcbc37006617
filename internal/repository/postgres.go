package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
)

// PostgresRepository stores upload records in PostgreSQL with indexed
// access by identifier, client and expiry. The database serializes
// per-row mutations, so unrelated identifiers can be read concurrently.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository connects, verifies the connection and creates
// the schema if it is missing.
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	r := &PostgresRepository{db: db}
	if err := r.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Connected to PostgreSQL successfully")
	return r, nil
}

func (r *PostgresRepository) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS uploads (
        id UUID PRIMARY KEY,
        client_id VARCHAR(255) NOT NULL,
        file_name VARCHAR(255) NOT NULL,
        content_type VARCHAR(100) NOT NULL,
        file_size BIGINT NOT NULL,
        storage_location VARCHAR(500),
        status VARCHAR(20) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        expires_at TIMESTAMPTZ NOT NULL,
        completed_at TIMESTAMPTZ,
        progress_percentage INT NOT NULL DEFAULT 0,
        bytes_uploaded BIGINT NOT NULL DEFAULT 0,
        retry_count INT NOT NULL DEFAULT 0,
        last_error TEXT,
        last_retry_at TIMESTAMPTZ,
        is_compressed BOOLEAN NOT NULL DEFAULT false,
        original_size BIGINT NOT NULL DEFAULT 0,
        compressed_size BIGINT NOT NULL DEFAULT 0
    );
    `
	if _, err := r.db.Exec(query); err != nil {
		return err
	}

	indexQuery := `
    CREATE INDEX IF NOT EXISTS idx_uploads_client_id ON uploads(client_id);
    CREATE INDEX IF NOT EXISTS idx_uploads_expires_at ON uploads(expires_at);
    CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
    `
	_, err := r.db.Exec(indexQuery)
	return err
}

const uploadColumns = `id, client_id, file_name, content_type, file_size, storage_location,
    status, created_at, expires_at, completed_at, progress_percentage, bytes_uploaded,
    retry_count, last_error, last_retry_at, is_compressed, original_size, compressed_size`

func (r *PostgresRepository) Add(ctx context.Context, u models.Upload) error {
	query := `
    INSERT INTO uploads (` + uploadColumns + `)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
    `
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.ClientID, u.FileName, u.ContentType, u.FileSize,
		nullString(u.StorageLocation), string(u.Status), u.CreatedAt, u.ExpiresAt,
		u.CompletedAt, u.ProgressPercentage, u.BytesUploaded, u.RetryCount,
		nullString(u.LastError), u.LastRetryAt, u.IsCompressed, u.OriginalSize, u.CompressedSize,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (models.Upload, bool, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1`
	u, err := scanUpload(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Upload{}, false, nil
		}
		return models.Upload{}, false, err
	}
	return u, true, nil
}

func (r *PostgresRepository) GetByClient(ctx context.Context, clientID string) ([]models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, u models.Upload) (bool, error) {
	query := `
    UPDATE uploads SET
        file_name = $2, content_type = $3, file_size = $4, storage_location = $5,
        status = $6, expires_at = $7, completed_at = $8, progress_percentage = $9,
        bytes_uploaded = $10, retry_count = $11, last_error = $12, last_retry_at = $13,
        is_compressed = $14, original_size = $15, compressed_size = $16
    WHERE id = $1
    `
	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.FileName, u.ContentType, u.FileSize, nullString(u.StorageLocation),
		string(u.Status), u.ExpiresAt, u.CompletedAt, u.ProgressPercentage,
		u.BytesUploaded, u.RetryCount, nullString(u.LastError), u.LastRetryAt,
		u.IsCompressed, u.OriginalSize, u.CompressedSize,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE expires_at <= $1`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUpload(row rowScanner) (models.Upload, error) {
	var u models.Upload
	var storageLocation, lastError sql.NullString
	var completedAt, lastRetryAt sql.NullTime
	var status string

	err := row.Scan(
		&u.ID, &u.ClientID, &u.FileName, &u.ContentType, &u.FileSize,
		&storageLocation, &status, &u.CreatedAt, &u.ExpiresAt, &completedAt,
		&u.ProgressPercentage, &u.BytesUploaded, &u.RetryCount, &lastError,
		&lastRetryAt, &u.IsCompressed, &u.OriginalSize, &u.CompressedSize,
	)
	if err != nil {
		return models.Upload{}, err
	}

	u.Status = models.UploadStatus(status)
	u.StorageLocation = storageLocation.String
	u.LastError = lastError.String
	if completedAt.Valid {
		t := completedAt.Time
		u.CompletedAt = &t
	}
	if lastRetryAt.Valid {
		t := lastRetryAt.Time
		u.LastRetryAt = &t
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
