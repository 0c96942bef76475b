// Package memory provides an in-memory filebroker.BlobStore for tests and
// local development. Presigned URLs are synthetic memory:// URLs; use
// ParseSignedURL to inspect them.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/file-broker/pkg/filebroker"
)

type storedVersion struct {
	versionID          string
	data               []byte
	metadata           map[string]string
	contentDisposition string
	contentType        string
	modified           time.Time
}

// Backend is an in-memory implementation of the filebroker.BlobStore
// interface. With versioning enabled every put appends a version, matching
// S3 bucket-versioning behaviour; without it each put replaces the object.
type Backend struct {
	mu         sync.RWMutex
	bucket     string
	versioning bool
	objects    map[string][]storedVersion
}

// New creates a new in-memory storage backend.
func New(bucket string) *Backend {
	return &Backend{
		bucket:  bucket,
		objects: make(map[string][]storedVersion),
	}
}

func (b *Backend) PutObject(ctx context.Context, objectKey string, reader io.Reader, opts filebroker.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return &filebroker.StorageError{Bucket: b.bucket, Key: objectKey, Op: "put_object", Err: err}
	}

	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	version := storedVersion{
		versionID:          uuid.NewString(),
		data:               data,
		metadata:           meta,
		contentDisposition: opts.ContentDisposition,
		contentType:        opts.ContentType,
		modified:           time.Now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.versioning {
		b.objects[objectKey] = append(b.objects[objectKey], version)
	} else {
		b.objects[objectKey] = []storedVersion{version}
	}
	return nil
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey, versionID string) (*filebroker.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	version, err := b.lookup(objectKey, versionID)
	if err != nil {
		return nil, err
	}
	return b.objectMeta(objectKey, version), nil
}

func (b *Backend) GetObject(ctx context.Context, objectKey, versionID string) (*filebroker.ObjectMeta, io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	version, err := b.lookup(objectKey, versionID)
	if err != nil {
		return nil, nil, err
	}
	return b.objectMeta(objectKey, version), io.NopCloser(bytes.NewReader(version.data)), nil
}

func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	versions, ok := b.objects[objectKey]
	return ok && len(versions) > 0, nil
}

func (b *Backend) PresignPut(ctx context.Context, objectKey string, expiresAt time.Time) (string, error) {
	return b.signURL(objectKey, "", "PUT", expiresAt), nil
}

func (b *Backend) PresignGet(ctx context.Context, objectKey, versionID string, expiresAt time.Time) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.lookup(objectKey, versionID); err != nil {
		return "", err
	}
	return b.signURL(objectKey, versionID, "GET", expiresAt), nil
}

func (b *Backend) ListVersions(ctx context.Context, keyPrefix string) ([]filebroker.ObjectVersion, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []filebroker.ObjectVersion
	for key, versions := range b.objects {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		for i, v := range versions {
			out = append(out, filebroker.ObjectVersion{
				Key:          key,
				VersionID:    v.versionID,
				IsLatest:     i == len(versions)-1,
				Size:         int64(len(v.data)),
				LastModified: v.modified,
			})
		}
	}
	return out, nil
}

func (b *Backend) EnsureBucket(ctx context.Context) error {
	return nil
}

func (b *Backend) EnsureVersioning(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.versioning = true
	return nil
}

// lookup must be called with the mutex held.
func (b *Backend) lookup(objectKey, versionID string) (storedVersion, error) {
	versions, ok := b.objects[objectKey]
	if !ok || len(versions) == 0 {
		return storedVersion{}, filebroker.ErrObjectNotFound
	}
	if versionID == "" {
		return versions[len(versions)-1], nil
	}
	for _, v := range versions {
		if v.versionID == versionID {
			return v, nil
		}
	}
	return storedVersion{}, filebroker.ErrObjectNotFound
}

func (b *Backend) objectMeta(objectKey string, v storedVersion) *filebroker.ObjectMeta {
	meta := make(map[string]string, len(v.metadata))
	for k, val := range v.metadata {
		meta[k] = val
	}
	contentType := v.contentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &filebroker.ObjectMeta{
		Key:                objectKey,
		Size:               int64(len(v.data)),
		ContentType:        contentType,
		ContentDisposition: v.contentDisposition,
		UpdatedAt:          v.modified,
		ETag:               v.versionID,
		Metadata:           meta,
	}
}

func (b *Backend) signURL(objectKey, versionID, verb string, expiresAt time.Time) string {
	q := url.Values{}
	q.Set("verb", verb)
	q.Set("expires", strconv.FormatInt(expiresAt.UTC().Unix(), 10))
	if versionID != "" {
		q.Set("versionId", versionID)
	}
	return fmt.Sprintf("memory://%s/%s?%s", b.bucket, objectKey, q.Encode())
}

// SignedURL is the decoded form of a synthetic memory:// presigned URL.
type SignedURL struct {
	Bucket    string
	Key       string
	VersionID string
	Verb      string
	ExpiresAt time.Time
}

// Valid reports whether the grant is still usable at the given instant.
func (u SignedURL) Valid(at time.Time) bool {
	return at.Before(u.ExpiresAt)
}

// ParseSignedURL decodes a URL produced by PresignPut or PresignGet.
func ParseSignedURL(raw string) (SignedURL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return SignedURL{}, fmt.Errorf("parse signed url: %w", err)
	}
	if parsed.Scheme != "memory" {
		return SignedURL{}, fmt.Errorf("parse signed url: unexpected scheme %q", parsed.Scheme)
	}
	epoch, err := strconv.ParseInt(parsed.Query().Get("expires"), 10, 64)
	if err != nil {
		return SignedURL{}, fmt.Errorf("parse signed url: bad expires: %w", err)
	}
	return SignedURL{
		Bucket:    parsed.Host,
		Key:       strings.TrimPrefix(parsed.Path, "/"),
		VersionID: parsed.Query().Get("versionId"),
		Verb:      parsed.Query().Get("verb"),
		ExpiresAt: time.Unix(epoch, 0).UTC(),
	}, nil
}
