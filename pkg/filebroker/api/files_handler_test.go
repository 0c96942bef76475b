package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/file-broker/pkg/filebroker"
	"github.com/tendant/file-broker/pkg/filebroker/api"
	memorystorage "github.com/tendant/file-broker/pkg/filebroker/storage/memory"
)

type fixture struct {
	router  chi.Router
	backend *memorystorage.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := memorystorage.New("test-bucket")
	svc, err := filebroker.NewPlaceholderService(backend)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api/v1/files", api.NewFilesHandler(svc).Routes())
	return &fixture{router: r, backend: backend}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createFile(t *testing.T) api.NewFileResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/files", api.CreateFileRequest{
		FileName: "report.pdf",
		Metadata: map[string]filebroker.Value{
			"k1": filebroker.Bool(true),
			"k2": filebroker.Int(1),
		},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp api.NewFileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.NotEmpty(t, resp.UploadURL)
	return resp
}

func (f *fixture) uploadContent(t *testing.T, uploadURL, fileName, content string) {
	t.Helper()
	signed, err := memorystorage.ParseSignedURL(uploadURL)
	require.NoError(t, err)
	err = f.backend.PutObject(context.Background(), signed.Key, strings.NewReader(content), filebroker.PutOptions{
		ContentDisposition: fmt.Sprintf("attachment;filename=%q", fileName),
	})
	require.NoError(t, err)
}

func TestCreateFile(t *testing.T) {
	f := newFixture(t)
	resp := f.createFile(t)

	signed, err := memorystorage.ParseSignedURL(resp.UploadURL)
	require.NoError(t, err)
	assert.Equal(t, "PUT", signed.Verb)
}

func TestCreateFileValidation(t *testing.T) {
	f := newFixture(t)

	t.Run("MissingFileName", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/files", api.CreateFileRequest{
			ExpiresAt: time.Now().Add(time.Hour),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("PastExpiry", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/files", api.CreateFileRequest{
			FileName:  "f.txt",
			ExpiresAt: time.Now().Add(-time.Hour),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/files", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetFileData(t *testing.T) {
	f := newFixture(t)
	created := f.createFile(t)

	t.Run("BeforeUpload", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/files/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	f.uploadContent(t, created.UploadURL, "uploaded.pdf", "content")

	t.Run("AfterUpload", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/files/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var record filebroker.FileRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
		assert.Equal(t, created.ID, record.ID)
		assert.Equal(t, "uploaded.pdf", record.FileName)
		require.Contains(t, record.Metadata, "k2")
		assert.True(t, record.Metadata["k2"].Equal(filebroker.Int(1)))
	})

	t.Run("UnknownID", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/files/no-such-id", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGenerateDownloadURL(t *testing.T) {
	f := newFixture(t)
	created := f.createFile(t)

	t.Run("BeforeUpload", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/files/"+created.ID+"/download-url", api.DownloadURLRequest{
			ExpiresAt: time.Now().Add(time.Minute),
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	f.uploadContent(t, created.UploadURL, "uploaded.pdf", "content")

	t.Run("AfterUpload", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/files/"+created.ID+"/download-url", api.DownloadURLRequest{
			ExpiresAt: time.Now().Add(time.Minute),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp api.DownloadURLResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		signed, err := memorystorage.ParseSignedURL(resp.URL)
		require.NoError(t, err)
		assert.Equal(t, "GET", signed.Verb)
	})

	t.Run("PastExpiry", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/files/"+created.ID+"/download-url", api.DownloadURLRequest{
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadFileEndpoint(t *testing.T) {
	f := newFixture(t)
	created := f.createFile(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "ignored.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded through the service"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/"+created.ID+"/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	getRec := f.do(t, http.MethodGet, "/api/v1/files/"+created.ID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	var record filebroker.FileRecord
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &record))
	assert.Equal(t, "report.pdf", record.FileName)

	t.Run("MissingFilePart", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/files/"+created.ID+"/upload", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
