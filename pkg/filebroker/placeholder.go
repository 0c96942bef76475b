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

// placeholderService implements Service with the two-key placeholder scheme:
// an immutable zero-byte object at the file id carries the record metadata
// and a reference to a second, independently minted content key. Whether the
// file "is uploaded" is derived solely from the content object's existence;
// nothing the service writes is trusted as an upload marker.
type placeholderService struct {
	store BlobStore
	opts  serviceOptions
}

// NewPlaceholderService creates the placeholder-strategy lifecycle service.
func NewPlaceholderService(store BlobStore, options ...Option) (Service, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	s := &placeholderService{
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

func (s *placeholderService) CreateFile(ctx context.Context, req CreateFileRequest) (*NewFileResult, error) {
	now := s.opts.now()
	if err := validateCreate(req, now); err != nil {
		return nil, err
	}

	// Two independent ids: the public file id addresses the placeholder,
	// the content key addresses the object the client writes directly.
	fileID := s.opts.newID()
	contentKey := s.opts.newID()

	meta, err := encodeRecordMeta(recordMeta{
		ID:         fileID,
		ContentKey: contentKey,
		FileName:   req.FileName,
		CreatedAt:  now,
		ExpiresAt:  req.ExpiresAt,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "create", Err: err}
	}

	if err := s.store.PutObject(ctx, fileID, bytes.NewReader(nil), PutOptions{Metadata: meta}); err != nil {
		return nil, &FileError{FileID: fileID, Op: "create", Err: translateWriteErr(err)}
	}

	uploadURL, err := s.store.PresignPut(ctx, contentKey, req.ExpiresAt)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "create", Err: translateWriteErr(err)}
	}

	slog.Info("file record created", "file_id", fileID, "expires_at", req.ExpiresAt)
	return &NewFileResult{ID: fileID, UploadURL: uploadURL}, nil
}

func (s *placeholderService) GetFileData(ctx context.Context, fileID string) (*FileRecord, error) {
	rec, err := s.getUploadedRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}

	// The display name belongs to the content object, not the placeholder:
	// the uploader controls it via the Content-Disposition header.
	contentMeta, err := s.store.GetObjectMeta(ctx, rec.ContentKey, "")
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "get_file_data", Err: translateReadErr(err)}
	}
	fileName, ok := fileNameFromDisposition(contentMeta.ContentDisposition)
	if !ok {
		return nil, &FileError{
			FileID: fileID,
			Op:     "get_file_data",
			Err:    fmt.Errorf("%w: content object %s has no filename header", ErrMetadataCorrupted, rec.ContentKey),
		}
	}

	return &FileRecord{
		ID:        rec.ID,
		FileName:  fileName,
		CreatedAt: rec.CreatedAt,
		Metadata:  rec.Metadata,
	}, nil
}

func (s *placeholderService) GenerateDownloadURL(ctx context.Context, fileID string, expiresAt time.Time) (string, error) {
	if err := validateExpiry(expiresAt, s.opts.now()); err != nil {
		return "", err
	}
	rec, err := s.getUploadedRecord(ctx, fileID)
	if err != nil {
		return "", err
	}

	url, err := s.store.PresignGet(ctx, rec.ContentKey, "", expiresAt)
	if err != nil {
		return "", &FileError{FileID: fileID, Op: "generate_download_url", Err: translateReadErr(err)}
	}
	return url, nil
}

func (s *placeholderService) UploadFile(ctx context.Context, fileID string, reader io.Reader) error {
	rec, err := s.getRecord(ctx, fileID)
	if err != nil {
		return err
	}

	uploaded, err := s.store.Exists(ctx, rec.ContentKey)
	if err != nil {
		return &FileError{FileID: fileID, Op: "upload_file", Err: translateReadErr(err)}
	}
	// Re-upload before expiry overwrites; a lapsed, never-uploaded record is
	// terminal.
	if !uploaded && s.opts.now().After(rec.ExpiresAt) {
		return &FileError{FileID: fileID, Op: "upload_file", Err: ErrFileNotFound}
	}

	opts := PutOptions{ContentDisposition: dispositionForFileName(rec.FileName)}
	if err := s.store.PutObject(ctx, rec.ContentKey, reader, opts); err != nil {
		return &FileError{FileID: fileID, Op: "upload_file", Err: translateWriteErr(err)}
	}
	slog.Info("file content uploaded", "file_id", fileID)
	return nil
}

// getRecord fetches and decodes the placeholder object for fileID.
func (s *placeholderService) getRecord(ctx context.Context, fileID string) (*recordMeta, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}

	meta, err := s.store.GetObjectMeta(ctx, fileID, "")
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "get_record", Err: translateReadErr(err)}
	}
	rec, err := decodeRecordMeta(meta.Metadata, true)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "get_record", Err: err}
	}
	return rec, nil
}

// getUploadedRecord is getRecord plus the upload gate: the content object's
// existence is the only authority. A pending record reads as not-found
// whether or not its window has elapsed; there is simply nothing to serve.
func (s *placeholderService) getUploadedRecord(ctx context.Context, fileID string) (*recordMeta, error) {
	rec, err := s.getRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.store.Exists(ctx, rec.ContentKey)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "check_uploaded", Err: translateReadErr(err)}
	}
	if !uploaded {
		if s.opts.now().After(rec.ExpiresAt) {
			slog.Info("file expired before upload", "file_id", fileID, "expired_at", rec.ExpiresAt)
		}
		return nil, &FileError{FileID: fileID, Op: "check_uploaded", Err: ErrFileNotFound}
	}
	return rec, nil
}

// translateReadErr maps a BlobStore failure on a read path to the service
// error taxonomy. Raw backend errors never escape the service boundary.
func translateReadErr(err error) error {
	if errors.Is(err, ErrObjectNotFound) {
		return ErrFileNotFound
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// translateWriteErr additionally surfaces cooperative cancellation of an
// in-flight write as a distinct failure, never a silent success or retry.
func translateWriteErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUploadInterrupted, err)
	}
	if errors.Is(err, ErrObjectNotFound) {
		return ErrFileNotFound
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
