// Package storage uploads incident photos to object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/api/option"
)

// MaxPhotoBytes is the largest accepted upload.
const MaxPhotoBytes = 10 << 20

var (
	ErrEmptyUpload     = errors.New("upload is empty")
	ErrUploadTooLarge  = errors.New("upload exceeds 10 MiB")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// DetectImage sniffs data and returns its MIME type and file extension if it
// is one of the accepted photo formats.
func DetectImage(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmptyUpload
	}
	if len(data) > MaxPhotoBytes {
		return "", "", ErrUploadTooLarge
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := allowedImageTypes[m.String()]; ok {
			return m.String(), ext, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// ObjectStore writes an object and returns the URL it is served from.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// GCSStore stores objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCSStore creates a client using the service account key at keyPath, or
// application default credentials when keyPath is empty.
func NewGCSStore(ctx context.Context, bucket, keyPath, publicBase string) (*GCSStore, error) {
	var opts []option.ClientOption
	if keyPath != "" {
		opts = append(opts, option.WithCredentialsFile(keyPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("writing gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing GCS writer for %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

// MemoryStore keeps objects in memory. It backs local development when no
// bucket is configured.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]Object
}

type Object struct {
	ContentType string
	Data        []byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return s.baseURL + "/" + key, nil
}

func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// ServeHTTP serves the object named by the "key" path wildcard, so local
// uploads resolve at the URLs Put returns when mounted at /uploads/{key...}.
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.Get(r.PathValue("key"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	_, _ = w.Write(obj.Data)
}
