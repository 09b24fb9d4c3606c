package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/compuse/internal/shared"
	tu "github.com/desertthunder/compuse/internal/testing"
)

func TestDiskStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("put get delete", func(t *testing.T) {
		store, err := NewDiskStorage(t.TempDir())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		uri, err := store.Put(ctx, ClipKey("d1", "c1", ".wav"), []byte("RIFF"), "audio/wav")
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !strings.HasPrefix(uri, "file://") {
			t.Errorf("expected file uri, got %s", uri)
		}
		tu.AssertFileExists(t, filepath.Join(store.Root(), "drafts", "d1", "c1.wav"))

		data, mimeType, err := store.Get(ctx, uri)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != "RIFF" || mimeType != "audio/wav" {
			t.Errorf("expected RIFF audio/wav, got %q %s", data, mimeType)
		}

		if err := store.Delete(ctx, uri); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, _, err := store.Get(ctx, uri); !errors.Is(err, shared.ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, uri); err != nil {
			t.Errorf("deleting a missing object should succeed, got %v", err)
		}
	})

	t.Run("put overwrites", func(t *testing.T) {
		store, _ := NewDiskStorage(t.TempDir())
		store.Put(ctx, "a.wav", []byte("one"), "audio/wav")
		uri, _ := store.Put(ctx, "a.wav", []byte("two"), "audio/wav")

		data, _, _ := store.Get(ctx, uri)
		if string(data) != "two" {
			t.Errorf("expected overwritten content, got %q", data)
		}
	})

	t.Run("rejects escaping paths", func(t *testing.T) {
		store, _ := NewDiskStorage(t.TempDir())

		if _, err := store.Put(ctx, "../outside.wav", nil, "audio/wav"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for key, got %v", err)
		}
		if _, _, err := store.Get(ctx, "file:///etc/passwd"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for uri, got %v", err)
		}
		if _, _, err := store.Get(ctx, "https://example.com/a.wav"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for non-file uri, got %v", err)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		if _, err := NewDiskStorage(""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		store, _ := NewDiskStorage(t.TempDir())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := store.Put(cctx, "a.wav", nil, "audio/wav"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// fakeBucket is an in-memory storage bucket API
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	auth    []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auth = append(f.auth, r.Header.Get("Authorization"))

	switch r.Method {
	case http.MethodPost:
		data, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = data
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", f.types[r.URL.Path])
		w.Write(data)
	case http.MethodDelete:
		if _, ok := f.objects[r.URL.Path]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.objects, r.URL.Path)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestBucketService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("missing url", func(t *testing.T) {
			if _, err := NewBucketService(ctx, "", "drafts", "", nil); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("missing bucket", func(t *testing.T) {
			if _, err := NewBucketService(ctx, "http://example.com", "", "", nil); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("invalid url", func(t *testing.T) {
			if _, err := NewBucketService(ctx, "not a url", "drafts", "", nil); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("round trip with bearer token", func(t *testing.T) {
		bucket := newFakeBucket()
		server := httptest.NewServer(bucket)
		defer server.Close()

		store, err := NewBucketService(ctx, server.URL+"/", "drafts", "secret", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		uri, err := store.Put(ctx, "drafts/d1/c1.wav", []byte("RIFF"), "audio/wav")
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if uri != server.URL+"/object/drafts/drafts/d1/c1.wav" {
			t.Errorf("unexpected uri %s", uri)
		}

		data, mimeType, err := store.Get(ctx, uri)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != "RIFF" || mimeType != "audio/wav" {
			t.Errorf("expected RIFF audio/wav, got %q %s", data, mimeType)
		}

		if err := store.Delete(ctx, uri); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := store.Delete(ctx, uri); err != nil {
			t.Errorf("deleting a missing object should succeed, got %v", err)
		}
		if _, _, err := store.Get(ctx, uri); !errors.Is(err, shared.ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}

		for _, h := range bucket.auth {
			if h != "Bearer secret" {
				t.Errorf("expected bearer token on every request, got %q", h)
			}
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		store, _ := NewBucketService(ctx, server.URL, "drafts", "", nil)
		if _, err := store.Put(ctx, "a.wav", nil, "audio/wav"); !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}

		store, _ := NewBucketService(ctx, "http://bucket.invalid", "drafts", "", client)
		if _, err := store.Put(ctx, "a.wav", nil, "audio/wav"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("body read error", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}

		store, _ := NewBucketService(ctx, "http://bucket.example", "drafts", "", client)
		_, _, err := store.Get(ctx, store.ObjectURL("a.wav"))
		if err == nil || !strings.Contains(err.Error(), "failed to read response") {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("foreign uri", func(t *testing.T) {
		store, _ := NewBucketService(ctx, "http://bucket.example", "drafts", "", nil)
		if _, _, err := store.Get(ctx, "http://other.example/object/drafts/a.wav"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "clips")
		store, err := NewStorage(ctx, shared.StorageConfig{Driver: "disk", Dir: dir}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.Name() != "disk" {
			t.Errorf("expected disk, got %s", store.Name())
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected storage dir to be created: %v", err)
		}
	})

	t.Run("bucket", func(t *testing.T) {
		store, err := NewStorage(ctx, shared.StorageConfig{Driver: "bucket", BucketURL: "http://bucket.example", Bucket: "drafts"}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.Name() != "bucket" {
			t.Errorf("expected bucket, got %s", store.Name())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewStorage(ctx, shared.StorageConfig{Driver: "ftp"}, nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
