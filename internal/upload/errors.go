package upload

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an upload does not exist or the caller's
// client ID does not match the record's owner. The two cases are not
// distinguished so that foreign records stay invisible.
var ErrNotFound = errors.New("upload not found")

// ValidationError reports rejected creation input or an invalid file.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// TransferError wraps a storage or compression I/O failure.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed during %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
