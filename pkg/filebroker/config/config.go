// Package config builds a ready-to-serve filebroker.Service from declarative
// server configuration.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/file-broker/pkg/filebroker"
	memorystorage "github.com/tendant/file-broker/pkg/filebroker/storage/memory"
	s3storage "github.com/tendant/file-broker/pkg/filebroker/storage/s3"
)

// Lifecycle strategy names.
const (
	StrategyPlaceholder = "placeholder"
	StrategyVersioned   = "versioned"
)

// Storage backend type names.
const (
	StorageMemory = "memory"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		Strategy:    StrategyPlaceholder,
		StorageType: StorageMemory,
		Bucket:      "file-broker",
	}
}

// ServerConfig represents server configuration for the file-broker service.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Strategy selects the lifecycle coordinator implementation:
	// "placeholder" or "versioned". The choice is invisible to callers.
	Strategy string

	// Storage configuration
	StorageType string // "memory", "s3"
	Bucket      string

	S3 S3Config
}

// S3Config carries the S3 gateway settings. Endpoint is only needed for
// S3-compatible services (MinIO, Ceph).
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	CreateBucket    bool
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Strategy != StrategyPlaceholder && c.Strategy != StrategyVersioned {
		return fmt.Errorf("strategy must be %q or %q", StrategyPlaceholder, StrategyVersioned)
	}
	if c.StorageType != StorageMemory && c.StorageType != StorageS3 {
		return fmt.Errorf("storage type must be %q or %q", StorageMemory, StorageS3)
	}
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// BuildService constructs the blob store gateway, prepares the bucket and
// returns the configured lifecycle service. The gateway is constructed once
// here and shared read-only by the service thereafter.
func (c *ServerConfig) BuildService(ctx context.Context) (filebroker.Service, error) {
	store, err := c.buildBlobStore()
	if err != nil {
		return nil, err
	}

	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket: %w", err)
	}
	if c.Strategy == StrategyVersioned {
		if err := store.EnsureVersioning(ctx); err != nil {
			return nil, fmt.Errorf("failed to enable bucket versioning: %w", err)
		}
	}

	switch c.Strategy {
	case StrategyVersioned:
		return filebroker.NewVersionedService(store)
	default:
		return filebroker.NewPlaceholderService(store)
	}
}

func (c *ServerConfig) buildBlobStore() (filebroker.BlobStore, error) {
	switch c.StorageType {
	case StorageMemory:
		return memorystorage.New(c.Bucket), nil
	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", c.StorageType)
	}
}
