package storage

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements ObjectStorage against a MinIO (or any
// S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStorage connects to the endpoint and creates the bucket if it
// doesn't exist.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Created bucket: %s", bucket)
	}

	log.Println("Connected to MinIO successfully")
	return &MinioStorage{client: client, bucketName: bucket}, nil
}

// CheckConnection is used by health checks.
func (s *MinioStorage) CheckConnection(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio storage not initialized")
	}
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func (s *MinioStorage) Upload(ctx context.Context, clientID, uploadID string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	location := objectKey(clientID, uploadID)

	reader := r
	if progress != nil && size > 0 {
		reader = &progressReader{r: r, total: size, report: progress}
	}

	_, err := s.client.PutObject(ctx, s.bucketName, location, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return location, nil
}

func (s *MinioStorage) Download(ctx context.Context, location string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; stat to surface a missing key now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (s *MinioStorage) Delete(ctx context.Context, location string) error {
	return s.client.RemoveObject(ctx, s.bucketName, location, minio.RemoveObjectOptions{})
}

func (s *MinioStorage) Exists(ctx context.Context, location string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, location, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func objectKey(clientID, uploadID string) string {
	return fmt.Sprintf("%s/%s", clientID, uploadID)
}

// progressReader reports transfer percentage as bytes pass through.
// Reported values never decrease and reach 100 once the stream is
// exhausted.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	lastPct  int
	report   ProgressFunc
	reported bool
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		pct := int(float64(p.read) / float64(p.total) * 100)
		if pct > 100 {
			pct = 100
		}
		if pct > p.lastPct || !p.reported {
			p.lastPct = pct
			p.reported = true
			p.report(pct)
		}
	}
	if err == io.EOF && p.lastPct < 100 {
		p.lastPct = 100
		p.report(100)
	}
	return n, err
}
