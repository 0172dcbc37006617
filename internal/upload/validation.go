package upload

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Validator checks upload input before any bytes are accepted.
type Validator struct {
	maxFileSize       int64
	allowedExtensions map[string]struct{}
	allowedMimeTypes  map[string]struct{}
}

const defaultMaxFileSize = 5 << 30 // 5 GiB

func NewValidator() *Validator {
	return &Validator{
		maxFileSize: defaultMaxFileSize,
		allowedExtensions: map[string]struct{}{
			".csv": {},
		},
		allowedMimeTypes: map[string]struct{}{
			"text/csv":                 {},
			"application/csv":          {},
			"application/vnd.ms-excel": {},
		},
	}
}

// AddAllowedExtension widens the extension allow-list.
func (v *Validator) AddAllowedExtension(ext string) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	v.allowedExtensions[strings.ToLower(ext)] = struct{}{}
}

// AddAllowedMimeType widens the MIME allow-list.
func (v *Validator) AddAllowedMimeType(mimeType string) {
	v.allowedMimeTypes[strings.ToLower(mimeType)] = struct{}{}
}

// ValidateFile checks name, declared size and content type, then sniffs
// the first line of the stream for CSV shape. The reader is consumed up
// to the first newline; callers should pass a buffered stream they can
// rewind or re-open.
func (v *Validator) ValidateFile(fileName, contentType string, size int64, r io.Reader) error {
	if size <= 0 {
		return &ValidationError{Reason: "file is empty"}
	}
	if size > v.maxFileSize {
		return &ValidationError{Reason: fmt.Sprintf("file size exceeds maximum allowed size of %d MB", v.maxFileSize/(1<<20))}
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := v.allowedExtensions[ext]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("file extension %q is not allowed", ext)}
	}
	if _, ok := v.allowedMimeTypes[strings.ToLower(contentType)]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("file type %q is not allowed", contentType)}
	}

	firstLine, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return &ValidationError{Reason: "error reading file: " + err.Error()}
	}
	if strings.TrimSpace(firstLine) == "" {
		return &ValidationError{Reason: "CSV file is empty or invalid"}
	}
	if !strings.Contains(firstLine, ",") {
		return &ValidationError{Reason: "file does not appear to be a valid CSV"}
	}

	return nil
}
