package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewDiskStorage(root, "/media")

	require.NoError(t, store.Save(ctx, "posts/a.png", strings.NewReader("payload"), "image/png"))

	_, err := os.Stat(filepath.Join(root, "posts", "a.png"))
	require.NoError(t, err)

	body, err := store.Open(ctx, "posts/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = store.Open(ctx, "posts")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "/media/posts/a.png", store.URL("posts/a.png"))

	require.NoError(t, store.Delete(ctx, "posts/a.png"))
	_, err = store.Open(ctx, "posts/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "posts/a.png"), ErrNotFound)
}

func TestDiskStorageRejectsEscapingNames(t *testing.T) {
	ctx := context.Background()
	store := NewDiskStorage(t.TempDir(), "/media/")

	for _, name := range []string{"", "../etc/passwd", "posts/../../x", "posts//x"} {
		err := store.Save(ctx, name, strings.NewReader("x"), "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestNew(t *testing.T) {
	store, err := New(config.MediaConfig{Backend: "disk", Root: t.TempDir(), URL: "/media/"})
	require.NoError(t, err)
	assert.IsType(t, &DiskStorage{}, store)

	_, err = New(config.MediaConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewDiskStorage(t.TempDir(), "/media/")
	require.NoError(t, store.Save(context.Background(), "posts/a.png", bytes.NewReader([]byte{1, 2, 3}), "image/png"))

	r := gin.New()
	r.GET("/media/*filepath", Handler(store))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest("GET", "/media/posts/a.png", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, []byte{1, 2, 3}, resp.Body.Bytes())

	for _, dir := range []string{"/media/posts", "/media/posts/"} {
		resp = httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest("GET", dir, nil))
		assert.Equal(t, http.StatusNotFound, resp.Code, dir)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest("GET", "/media/posts/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest("GET", "/media/", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

// fakeS3 answers the path-style object requests the storage issues
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3StorageRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewS3Storage(config.S3Config{
		Bucket:    "media",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		Prefix:    "yatube",
		AccessKey: "key",
		SecretKey: "secret",
		PublicURL: "https://cdn.example.com",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "posts/a.png", bytes.NewReader([]byte("png-bytes")), "image/png"))
	assert.Equal(t, []byte("png-bytes"), fake.objects["/media/yatube/posts/a.png"])
	assert.Equal(t, "image/png", fake.types["/media/yatube/posts/a.png"])

	body, err := store.Open(ctx, "posts/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	assert.Equal(t, "https://cdn.example.com/yatube/posts/a.png", store.URL("posts/a.png"))

	require.NoError(t, store.Delete(ctx, "posts/a.png"))
	_, err = store.Open(ctx, "posts/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3DefaultPublicURL(t *testing.T) {
	store, err := NewS3Storage(config.S3Config{Bucket: "media", Region: "eu-west-1", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/posts/a.png", store.URL("posts/a.png"))
}
