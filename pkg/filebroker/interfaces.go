package filebroker

import (
	"context"
	"io"
	"time"
)

// BlobStore is the narrow capability interface this system requires from an
// object storage backend. Implementations live under storage/. Every call is
// fallible I/O: not-found is signalled with ErrObjectNotFound, everything
// else wraps in *StorageError.
type BlobStore interface {
	// PutObject writes an object. The reader may be empty (placeholder
	// objects carry only metadata).
	PutObject(ctx context.Context, objectKey string, reader io.Reader, opts PutOptions) error

	// GetObjectMeta heads an object. versionID selects a specific version
	// and may be empty for the current one.
	GetObjectMeta(ctx context.Context, objectKey, versionID string) (*ObjectMeta, error)

	// GetObject fetches an object's metadata and content.
	GetObject(ctx context.Context, objectKey, versionID string) (*ObjectMeta, io.ReadCloser, error)

	// Exists reports whether an object exists at objectKey.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// PresignPut returns a write-only URL valid until expiresAt.
	PresignPut(ctx context.Context, objectKey string, expiresAt time.Time) (string, error)

	// PresignGet returns a read-only URL valid until expiresAt. versionID
	// may be empty for the current version.
	PresignGet(ctx context.Context, objectKey, versionID string, expiresAt time.Time) (string, error)

	// ListVersions returns the version descriptors for keys under keyPrefix,
	// in the backend's listing order. Only the versioned strategy needs it.
	ListVersions(ctx context.Context, keyPrefix string) ([]ObjectVersion, error)

	// EnsureBucket creates the configured bucket if it does not exist.
	EnsureBucket(ctx context.Context) error

	// EnsureVersioning enables native object versioning on the bucket.
	EnsureVersioning(ctx context.Context) error
}

// PutOptions carries per-object headers for PutObject.
type PutOptions struct {
	// Metadata is attached as user metadata (the backend's flat string map).
	Metadata map[string]string

	// ContentDisposition is set verbatim; the file name of a content object
	// travels in this header.
	ContentDisposition string

	// ContentType, if set, overrides the backend default.
	ContentType string
}

// ObjectMeta describes an object as seen by a head/get call.
type ObjectMeta struct {
	Key                string
	Size               int64
	ContentType        string
	ContentDisposition string
	UpdatedAt          time.Time
	ETag               string
	Metadata           map[string]string
}

// ObjectVersion describes one version of an object in a versioned bucket.
type ObjectVersion struct {
	Key          string
	VersionID    string
	IsLatest     bool
	Size         int64
	LastModified time.Time
}
