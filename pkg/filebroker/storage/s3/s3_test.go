package s3

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/file-broker/pkg/filebroker"
)

func TestS3BackendConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("CustomEndpoint", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.NotNil(t, backend)
	})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NoSuchBucket{}))
	assert.False(t, isNotFound(errors.New("connection refused")))
	assert.False(t, isNotFound(nil))
}

func TestWrapErr(t *testing.T) {
	b := &Backend{bucket: "test-bucket"}

	err := b.wrapErr("head_object", "some-key", &types.NotFound{})
	assert.ErrorIs(t, err, filebroker.ErrObjectNotFound)

	err = b.wrapErr("put_object", "some-key", errors.New("connection refused"))
	var storageErr *filebroker.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "test-bucket", storageErr.Bucket)
	assert.Equal(t, "some-key", storageErr.Key)
	assert.Equal(t, "put_object", storageErr.Op)
	assert.NotErrorIs(t, err, filebroker.ErrObjectNotFound)
}
