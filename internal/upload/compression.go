package upload

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	// CompressionThreshold is the minimum declared size for which
	// compression is considered.
	CompressionThreshold = 1 << 20 // 1 MiB

	copyBufferSize = 80 * 1024
)

// Compressor is the compression gate: it decides whether an upload is
// worth compressing and performs the streaming gzip pass.
type Compressor struct{}

func NewCompressor() *Compressor {
	return &Compressor{}
}

// ShouldCompress reports whether a stream of the given declared size and
// content type should be compressed before transfer. Only textual and
// structured formats above the threshold qualify.
func (c *Compressor) ShouldCompress(size int64, contentType string) bool {
	if size <= CompressionThreshold {
		return false
	}
	switch strings.ToLower(contentType) {
	case "text/csv", "text/plain", "application/json", "application/xml":
		return true
	}
	return false
}

// Compress consumes r fully and returns the gzip-compressed stream with
// its size. Streams below the threshold are returned unchanged.
func (c *Compressor) Compress(ctx context.Context, r io.Reader, size int64) (io.Reader, int64, error) {
	if size < CompressionThreshold {
		return r, size, nil
	}

	var out bytes.Buffer
	gz, _ := gzip.NewWriterLevel(&out, gzip.BestCompression)
	if err := copyChunked(ctx, gz, r); err != nil {
		return nil, 0, &TransferError{Op: "compress", Err: err}
	}
	if err := gz.Close(); err != nil {
		return nil, 0, &TransferError{Op: "compress", Err: err}
	}

	// Returned as a ReadSeeker so a failed transfer can rewind and retry.
	return bytes.NewReader(out.Bytes()), int64(out.Len()), nil
}

// Decompress is the inverse streaming operation.
func (c *Compressor) Decompress(ctx context.Context, r io.Reader) (io.Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, &TransferError{Op: "decompress", Err: err}
	}
	defer gz.Close()

	var out bytes.Buffer
	if err := copyChunked(ctx, &out, gz); err != nil {
		return nil, &TransferError{Op: "decompress", Err: err}
	}
	return &out, nil
}

// copyChunked copies with a bounded buffer, honoring cancellation
// between chunks.
func copyChunked(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
