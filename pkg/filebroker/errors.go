package filebroker

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrFileNotFound indicates the file id is unknown, or the content was
	// never uploaded. User-visible as a definite "no such file".
	ErrFileNotFound = errors.New("file not found")

	// ErrObjectNotFound indicates a backend object was not found. Returned
	// by BlobStore implementations; the lifecycle services translate it.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStorageUnavailable indicates a backend I/O failure. Never conflated
	// with ErrFileNotFound.
	ErrStorageUnavailable = errors.New("storage temporarily unavailable")

	// ErrMetadataCorrupted indicates a required reserved-prefix field is
	// missing or unreadable on decode. Not retried.
	ErrMetadataCorrupted = errors.New("file metadata corrupted")

	// ErrUploadInterrupted indicates cooperative cancellation while waiting
	// for an upload to complete.
	ErrUploadInterrupted = errors.New("upload wait interrupted")

	// ErrInvalidArgument indicates a malformed caller-supplied id, file name
	// or expiration timestamp, rejected before any backend call.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StorageError carries bucket/key context for a failed backend operation.
type StorageError struct {
	Bucket string
	Key    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s in bucket %s: %v", e.Op, e.Key, e.Bucket, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FileError wraps a failure of a lifecycle operation with its file id.
type FileError struct {
	FileID string
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// invalidArgf builds an ErrInvalidArgument with a caller-facing reason.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
