package filebroker

import (
	"context"
	"io"
	"time"
)

// Service is the file lifecycle coordinator. Two interchangeable
// implementations exist: NewPlaceholderService stores metadata on a separate
// placeholder object, NewVersionedService relies on native bucket versioning.
// Both expose identical external semantics; the choice is deployment-time
// configuration.
type Service interface {
	// CreateFile mints a new file id, records its metadata in the backend
	// and returns a presigned upload URL valid until req.ExpiresAt.
	CreateFile(ctx context.Context, req CreateFileRequest) (*NewFileResult, error)

	// GetFileData returns the file record for an uploaded file. It fails
	// with ErrFileNotFound while content has not been uploaded, and forever
	// once an un-uploaded file's expiration window has elapsed.
	GetFileData(ctx context.Context, fileID string) (*FileRecord, error)

	// GenerateDownloadURL returns a presigned read URL for an uploaded
	// file's content, valid until expiresAt. Same gate as GetFileData.
	GenerateDownloadURL(ctx context.Context, fileID string, expiresAt time.Time) (string, error)

	// UploadFile writes content through the service on behalf of a client
	// that cannot use the presigned upload URL. Re-upload before expiry
	// overwrites.
	UploadFile(ctx context.Context, fileID string, reader io.Reader) error
}

// CreateFileRequest contains parameters for creating a new file record.
type CreateFileRequest struct {
	FileName  string
	Metadata  map[string]Value
	ExpiresAt time.Time
}

// Option configures a lifecycle service.
type Option func(*serviceOptions)

type serviceOptions struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the time source. Used by tests; the default samples
// time.Now on every check, never cached.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *serviceOptions) {
		o.newID = newID
	}
}

// validateCreate rejects malformed create parameters before any backend call.
func validateCreate(req CreateFileRequest, now time.Time) error {
	if req.FileName == "" {
		return invalidArgf("file name required and not empty")
	}
	if req.ExpiresAt.IsZero() {
		return invalidArgf("expiration time required")
	}
	if !req.ExpiresAt.After(now) {
		return invalidArgf("expiration time %s is not in the future", req.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// validateFileID rejects malformed ids before any backend call.
func validateFileID(fileID string) error {
	if fileID == "" {
		return invalidArgf("file id required and not empty")
	}
	return nil
}

// validateExpiry rejects a non-future grant expiration.
func validateExpiry(expiresAt, now time.Time) error {
	if expiresAt.IsZero() {
		return invalidArgf("expiration time required")
	}
	if !expiresAt.After(now) {
		return invalidArgf("expiration time %s is not in the future", expiresAt.Format(time.RFC3339))
	}
	return nil
}
