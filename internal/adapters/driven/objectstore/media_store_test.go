package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	path        string
	contentType string
	body        string
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *[]recordedPut) {
	t.Helper()
	var mu sync.Mutex
	var puts []recordedPut

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &puts
}

func TestMediaStore_Upload(t *testing.T) {
	srv, puts := newFakeS3(t, http.StatusOK)

	store, err := NewMediaStore(context.Background(), Config{
		Endpoint:     srv.URL,
		Bucket:       "avatars",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "avatars/p-1/a.png", "image/png", 4, strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/avatars/avatars/p-1/a.png", url)

	require.Len(t, *puts, 1)
	put := (*puts)[0]
	assert.Equal(t, "/avatars/avatars/p-1/a.png", put.path)
	assert.Equal(t, "image/png", put.contentType)
}

func TestMediaStore_UploadSizeMismatch(t *testing.T) {
	srv, puts := newFakeS3(t, http.StatusOK)

	store, err := NewMediaStore(context.Background(), Config{Endpoint: srv.URL, Bucket: "b", AccessKey: "k", SecretKey: "s", UsePathStyle: true})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "k", "image/png", 10, strings.NewReader("abc"))
	assert.Error(t, err)
	assert.Empty(t, *puts)
}

func TestMediaStore_UploadRejected(t *testing.T) {
	srv, _ := newFakeS3(t, http.StatusForbidden)

	store, err := NewMediaStore(context.Background(), Config{Endpoint: srv.URL, Bucket: "b", AccessKey: "k", SecretKey: "s", UsePathStyle: true})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "k", "image/png", 3, strings.NewReader("abc"))
	assert.Error(t, err)
}

func TestNewMediaStore_RequiresBucket(t *testing.T) {
	_, err := NewMediaStore(context.Background(), Config{})
	assert.Error(t, err)
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBaseURL(Config{PublicBaseURL: "https://cdn.example.com/", Bucket: "b"}))
	assert.Equal(t, "http://minio:9000/b", publicBaseURL(Config{Endpoint: "http://minio:9000", Bucket: "b"}))
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com", publicBaseURL(Config{Bucket: "b", Region: "eu-west-1"}))
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, "avatars/p-1/my%20photo.png", escapeKey("avatars/p-1/my photo.png"))
}
