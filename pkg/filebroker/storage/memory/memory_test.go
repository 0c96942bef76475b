package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/file-broker/pkg/filebroker"
	memorystorage "github.com/tendant/file-broker/pkg/filebroker/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New("test-bucket")
	ctx := context.Background()
	testKey := "test/object/key"
	testData := "Hello, World! This is test data."

	t.Run("PutObject", func(t *testing.T) {
		err := backend.PutObject(ctx, testKey, strings.NewReader(testData), filebroker.PutOptions{
			Metadata:           map[string]string{"x-record-id": "abc"},
			ContentDisposition: `attachment;filename="hello.txt"`,
		})
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey, "")
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "abc", meta.Metadata["x-record-id"])
		assert.Equal(t, `attachment;filename="hello.txt"`, meta.ContentDisposition)
	})

	t.Run("GetObject", func(t *testing.T) {
		meta, body, err := backend.GetObject(ctx, testKey, "")
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
		assert.Equal(t, int64(len(testData)), meta.Size)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := backend.Exists(ctx, testKey)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = backend.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := backend.GetObjectMeta(ctx, "missing", "")
		assert.ErrorIs(t, err, filebroker.ErrObjectNotFound)

		_, err = backend.GetObjectMeta(ctx, testKey, "no-such-version")
		assert.ErrorIs(t, err, filebroker.ErrObjectNotFound)

		_, err = backend.PresignGet(ctx, "missing", "", time.Now().Add(time.Hour))
		assert.ErrorIs(t, err, filebroker.ErrObjectNotFound)
	})

	t.Run("OverwriteWithoutVersioning", func(t *testing.T) {
		key := "overwrite-key"
		require.NoError(t, backend.PutObject(ctx, key, strings.NewReader("one"), filebroker.PutOptions{}))
		require.NoError(t, backend.PutObject(ctx, key, strings.NewReader("two"), filebroker.PutOptions{}))

		versions, err := backend.ListVersions(ctx, key)
		require.NoError(t, err)
		assert.Len(t, versions, 1)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := backend.PutObject(cancelled, "any", strings.NewReader("x"), filebroker.PutOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryBackendVersioning(t *testing.T) {
	backend := memorystorage.New("test-bucket")
	ctx := context.Background()
	require.NoError(t, backend.EnsureVersioning(ctx))
	key := "versioned-key"

	require.NoError(t, backend.PutObject(ctx, key, strings.NewReader("meta"), filebroker.PutOptions{
		Metadata: map[string]string{"x-record-id": key},
	}))
	require.NoError(t, backend.PutObject(ctx, key, strings.NewReader("content"), filebroker.PutOptions{
		ContentDisposition: `attachment;filename="v2.txt"`,
	}))

	versions, err := backend.ListVersions(ctx, key)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	var latest, previous filebroker.ObjectVersion
	for _, v := range versions {
		if v.IsLatest {
			latest = v
		} else {
			previous = v
		}
	}
	require.NotEmpty(t, latest.VersionID)
	require.NotEmpty(t, previous.VersionID)

	metaObj, err := backend.GetObjectMeta(ctx, key, previous.VersionID)
	require.NoError(t, err)
	assert.Equal(t, key, metaObj.Metadata["x-record-id"])

	contentObj, err := backend.GetObjectMeta(ctx, key, latest.VersionID)
	require.NoError(t, err)
	assert.Equal(t, `attachment;filename="v2.txt"`, contentObj.ContentDisposition)

	// Current version without an explicit id is the latest.
	current, err := backend.GetObjectMeta(ctx, key, "")
	require.NoError(t, err)
	assert.Equal(t, contentObj.ContentDisposition, current.ContentDisposition)
}

func TestMemoryBackendSignedURLs(t *testing.T) {
	backend := memorystorage.New("test-bucket")
	ctx := context.Background()
	expiresAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	putURL, err := backend.PresignPut(ctx, "some/key", expiresAt)
	require.NoError(t, err)

	signed, err := memorystorage.ParseSignedURL(putURL)
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", signed.Bucket)
	assert.Equal(t, "some/key", signed.Key)
	assert.Equal(t, "PUT", signed.Verb)
	assert.True(t, signed.ExpiresAt.Equal(expiresAt))
	assert.True(t, signed.Valid(expiresAt.Add(-time.Minute)))
	assert.False(t, signed.Valid(expiresAt))

	require.NoError(t, backend.PutObject(ctx, "some/key", strings.NewReader("x"), filebroker.PutOptions{}))
	getURL, err := backend.PresignGet(ctx, "some/key", "", expiresAt)
	require.NoError(t, err)
	signed, err = memorystorage.ParseSignedURL(getURL)
	require.NoError(t, err)
	assert.Equal(t, "GET", signed.Verb)

	_, err = memorystorage.ParseSignedURL("https://example.com/not-memory")
	assert.Error(t, err)
}
