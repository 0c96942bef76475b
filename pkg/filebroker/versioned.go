package filebroker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// versionedService implements Service on native bucket versioning instead of
// a separate placeholder key: create writes version one (metadata only) at
// the file id and the client's upload becomes version two at the same key.
// A file is valid exactly when two versions exist; the non-latest version
// holds the record metadata, the latest holds content and its file name.
type versionedService struct {
	store BlobStore
	opts  serviceOptions
}

// NewVersionedService creates the versioning-strategy lifecycle service. The
// bucket must have versioning enabled (see BlobStore.EnsureVersioning).
func NewVersionedService(store BlobStore, options ...Option) (Service, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	s := &versionedService{
		store: store,
		opts: serviceOptions{
			now:   time.Now,
			newID: uuid.NewString,
		},
	}
	for _, option := range options {
		option(&s.opts)
	}
	return s, nil
}

func (s *versionedService) CreateFile(ctx context.Context, req CreateFileRequest) (*NewFileResult, error) {
	now := s.opts.now()
	if err := validateCreate(req, now); err != nil {
		return nil, err
	}

	fileID := s.opts.newID()
	meta, err := encodeRecordMeta(recordMeta{
		ID:        fileID,
		FileName:  req.FileName,
		CreatedAt: now,
		ExpiresAt: req.ExpiresAt,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "create", Err: err}
	}

	if err := s.store.PutObject(ctx, fileID, bytes.NewReader(nil), PutOptions{Metadata: meta}); err != nil {
		return nil, &FileError{FileID: fileID, Op: "create", Err: translateWriteErr(err)}
	}

	// The upload URL targets the same key; the client's write becomes the
	// second, latest version.
	uploadURL, err := s.store.PresignPut(ctx, fileID, req.ExpiresAt)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "create", Err: translateWriteErr(err)}
	}

	slog.Info("file record created", "file_id", fileID, "expires_at", req.ExpiresAt)
	return &NewFileResult{ID: fileID, UploadURL: uploadURL}, nil
}

func (s *versionedService) GetFileData(ctx context.Context, fileID string) (*FileRecord, error) {
	metaVersion, contentVersion, err := s.uploadedVersions(ctx, fileID)
	if err != nil {
		return nil, err
	}

	metaObj, err := s.store.GetObjectMeta(ctx, fileID, metaVersion.VersionID)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "get_file_data", Err: translateReadErr(err)}
	}
	rec, err := decodeRecordMeta(metaObj.Metadata, false)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "get_file_data", Err: err}
	}

	contentObj, err := s.store.GetObjectMeta(ctx, fileID, contentVersion.VersionID)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "get_file_data", Err: translateReadErr(err)}
	}
	fileName, ok := fileNameFromDisposition(contentObj.ContentDisposition)
	if !ok {
		return nil, &FileError{
			FileID: fileID,
			Op:     "get_file_data",
			Err:    fmt.Errorf("%w: content version %s has no filename header", ErrMetadataCorrupted, contentVersion.VersionID),
		}
	}

	return &FileRecord{
		ID:        rec.ID,
		FileName:  fileName,
		CreatedAt: rec.CreatedAt,
		Metadata:  rec.Metadata,
	}, nil
}

func (s *versionedService) GenerateDownloadURL(ctx context.Context, fileID string, expiresAt time.Time) (string, error) {
	if err := validateExpiry(expiresAt, s.opts.now()); err != nil {
		return "", err
	}
	_, contentVersion, err := s.uploadedVersions(ctx, fileID)
	if err != nil {
		return "", err
	}

	url, err := s.store.PresignGet(ctx, fileID, contentVersion.VersionID, expiresAt)
	if err != nil {
		return "", &FileError{FileID: fileID, Op: "generate_download_url", Err: translateReadErr(err)}
	}
	return url, nil
}

func (s *versionedService) UploadFile(ctx context.Context, fileID string, reader io.Reader) error {
	versions, err := s.listVersions(ctx, fileID)
	if err != nil {
		return err
	}
	switch len(versions) {
	case 0:
		return &FileError{FileID: fileID, Op: "upload_file", Err: ErrFileNotFound}
	case 1:
		// Pending: the single version is the metadata object.
	default:
		// A further write would break the two-version invariant; overwrite
		// is only tolerated through the placeholder strategy.
		return &FileError{
			FileID: fileID,
			Op:     "upload_file",
			Err:    invalidArgf("file already uploaded"),
		}
	}

	metaObj, err := s.store.GetObjectMeta(ctx, fileID, versions[0].VersionID)
	if err != nil {
		return &FileError{FileID: fileID, Op: "upload_file", Err: translateReadErr(err)}
	}
	rec, err := decodeRecordMeta(metaObj.Metadata, false)
	if err != nil {
		return &FileError{FileID: fileID, Op: "upload_file", Err: err}
	}
	if s.opts.now().After(rec.ExpiresAt) {
		return &FileError{FileID: fileID, Op: "upload_file", Err: ErrFileNotFound}
	}

	opts := PutOptions{ContentDisposition: dispositionForFileName(rec.FileName)}
	if err := s.store.PutObject(ctx, fileID, reader, opts); err != nil {
		return &FileError{FileID: fileID, Op: "upload_file", Err: translateWriteErr(err)}
	}
	slog.Info("file content uploaded", "file_id", fileID)
	return nil
}

// uploadedVersions lists the versions for fileID and applies the validity
// gate: exactly two versions mean metadata plus uploaded content. Fewer is a
// file that does not (yet, or anymore) exist for readers; more is backend
// state this system never writes, reported as corruption rather than
// guessed at.
func (s *versionedService) uploadedVersions(ctx context.Context, fileID string) (metaVersion, contentVersion ObjectVersion, err error) {
	versions, err := s.listVersions(ctx, fileID)
	if err != nil {
		return ObjectVersion{}, ObjectVersion{}, err
	}
	if len(versions) < 2 {
		return ObjectVersion{}, ObjectVersion{}, &FileError{FileID: fileID, Op: "check_uploaded", Err: ErrFileNotFound}
	}
	if len(versions) > 2 {
		return ObjectVersion{}, ObjectVersion{}, &FileError{
			FileID: fileID,
			Op:     "check_uploaded",
			Err:    fmt.Errorf("%w: %d versions for one file", ErrMetadataCorrupted, len(versions)),
		}
	}

	for _, v := range versions {
		if v.IsLatest {
			contentVersion = v
		} else {
			metaVersion = v
		}
	}
	if contentVersion.VersionID == "" || metaVersion.VersionID == "" {
		return ObjectVersion{}, ObjectVersion{}, &FileError{
			FileID: fileID,
			Op:     "check_uploaded",
			Err:    fmt.Errorf("%w: backend did not mark a latest version", ErrMetadataCorrupted),
		}
	}
	return metaVersion, contentVersion, nil
}

func (s *versionedService) listVersions(ctx context.Context, fileID string) ([]ObjectVersion, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}
	all, err := s.store.ListVersions(ctx, fileID)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "list_versions", Err: translateReadErr(err)}
	}
	// Prefix listing may return neighbours; only exact key matches belong to
	// this file.
	versions := all[:0:0]
	for _, v := range all {
		if v.Key == fileID {
			versions = append(versions, v)
		}
	}
	return versions, nil
}
