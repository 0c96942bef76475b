// Package s3 implements the filebroker.BlobStore gateway on any
// S3-compatible backend (AWS, MinIO, Ceph RGW).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/file-broker/pkg/filebroker"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // Access key ID
	SecretAccessKey string // Secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (MinIO, Ceph)

	// CreateBucketIfNotExist creates the bucket on startup.
	CreateBucketIfNotExist bool
}

// Backend is an S3-compatible implementation of the filebroker.BlobStore
// interface.
type Backend struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	config        Config
}

// New creates a new S3-compatible storage backend.
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	return &Backend{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        config.Bucket,
		config:        config,
	}, nil
}

// PutObject writes an object with the given user metadata and headers. The
// uploader handles multipart for large bodies; the reader may be empty.
func (b *Backend) PutObject(ctx context.Context, objectKey string, reader io.Reader, opts filebroker.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(objectKey),
		Body:     reader,
		Metadata: opts.Metadata,
	}
	if opts.ContentDisposition != "" {
		input.ContentDisposition = aws.String(opts.ContentDisposition)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	uploader := manager.NewUploader(b.client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return b.wrapErr("put_object", objectKey, err)
	}
	return nil
}

// GetObjectMeta heads an object, optionally a specific version.
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey, versionID string) (*filebroker.ObjectMeta, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	result, err := b.client.HeadObject(ctx, input)
	if err != nil {
		return nil, b.wrapErr("head_object", objectKey, err)
	}
	return b.objectMeta(objectKey, result), nil
}

// GetObject fetches an object's metadata and content.
func (b *Backend) GetObject(ctx context.Context, objectKey, versionID string) (*filebroker.ObjectMeta, io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	result, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, nil, b.wrapErr("get_object", objectKey, err)
	}

	meta := &filebroker.ObjectMeta{
		Key:                objectKey,
		ContentType:        aws.ToString(result.ContentType),
		ContentDisposition: aws.ToString(result.ContentDisposition),
		ETag:               strings.Trim(aws.ToString(result.ETag), "\""),
		Metadata:           result.Metadata,
	}
	if result.ContentLength != nil {
		meta.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		meta.UpdatedAt = *result.LastModified
	}
	return meta, result.Body, nil
}

// Exists reports whether an object exists at objectKey.
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, b.wrapErr("head_object", objectKey, err)
	}
	return true, nil
}

// PresignPut returns a write-only presigned URL valid until expiresAt.
func (b *Backend) PresignPut(ctx context.Context, objectKey string, expiresAt time.Time) (string, error) {
	result, err := b.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Until(expiresAt)
	})
	if err != nil {
		return "", b.wrapErr("presign_put", objectKey, err)
	}
	return result.URL, nil
}

// PresignGet returns a read-only presigned URL valid until expiresAt.
func (b *Backend) PresignGet(ctx context.Context, objectKey, versionID string, expiresAt time.Time) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	result, err := b.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = time.Until(expiresAt)
	})
	if err != nil {
		return "", b.wrapErr("presign_get", objectKey, err)
	}
	return result.URL, nil
}

// ListVersions lists object versions under keyPrefix.
func (b *Backend) ListVersions(ctx context.Context, keyPrefix string) ([]filebroker.ObjectVersion, error) {
	result, err := b.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(keyPrefix),
	})
	if err != nil {
		return nil, b.wrapErr("list_versions", keyPrefix, err)
	}

	versions := make([]filebroker.ObjectVersion, 0, len(result.Versions))
	for _, v := range result.Versions {
		version := filebroker.ObjectVersion{
			Key:       aws.ToString(v.Key),
			VersionID: aws.ToString(v.VersionId),
			IsLatest:  v.IsLatest != nil && *v.IsLatest,
		}
		if v.Size != nil {
			version.Size = *v.Size
		}
		if v.LastModified != nil {
			version.LastModified = *v.LastModified
		}
		versions = append(versions, version)
	}
	return versions, nil
}

// EnsureBucket creates the bucket if it does not exist and creation was
// requested in the config.
func (b *Backend) EnsureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return b.wrapErr("head_bucket", "", err)
	}
	if !b.config.CreateBucketIfNotExist {
		return b.wrapErr("head_bucket", "", fmt.Errorf("bucket %s does not exist", b.bucket))
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	// us-east-1 rejects an explicit location constraint.
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return b.wrapErr("create_bucket", "", err)
	}
	return nil
}

// EnsureVersioning enables native versioning on the bucket. Required by the
// versioned lifecycle strategy.
func (b *Backend) EnsureVersioning(ctx context.Context) error {
	_, err := b.client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(b.bucket),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return b.wrapErr("put_bucket_versioning", "", err)
	}
	return nil
}

func (b *Backend) objectMeta(objectKey string, result *s3.HeadObjectOutput) *filebroker.ObjectMeta {
	meta := &filebroker.ObjectMeta{
		Key:                objectKey,
		ContentType:        aws.ToString(result.ContentType),
		ContentDisposition: aws.ToString(result.ContentDisposition),
		ETag:               strings.Trim(aws.ToString(result.ETag), "\""),
		Metadata:           result.Metadata,
	}
	if result.ContentLength != nil {
		meta.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		meta.UpdatedAt = *result.LastModified
	}
	return meta
}

func (b *Backend) wrapErr(op, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s %s", filebroker.ErrObjectNotFound, op, key)
	}
	return &filebroker.StorageError{Bucket: b.bucket, Key: key, Op: op, Err: err}
}

// isNotFound recognises the several shapes S3-compatible backends use for a
// missing object, version or bucket.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket", "NoSuchVersion":
			return true
		}
	}
	return false
}
