package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// BlobStore addresses objects by bucket/path URIs, spanning every
// bucket the pipeline touches. Malformed URIs are rejected before any
// network call.
type BlobStore interface {
	// Exists checks whether the object at uri exists
	Exists(ctx context.Context, uri string) (bool, error)

	// Read fetches the full object body at uri
	Read(ctx context.Context, uri string) ([]byte, error)

	// Write stores data at uri and returns the uri written
	Write(ctx context.Context, uri string, data []byte, contentType string) (string, error)

	// Delete removes the object at uri
	Delete(ctx context.Context, uri string) error

	// ListPrefix returns the URIs of all objects under a uri prefix
	ListPrefix(ctx context.Context, uriPrefix string) ([]string, error)

	// URL returns an externally fetchable URL for the object at uri
	URL(uri string) (string, error)
}

// S3BlobStore implements BlobStore over a shared S3 client, creating
// one bucket-scoped handle per bucket seen in URIs.
type S3BlobStore struct {
	base *S3Storage

	mu      sync.Mutex
	buckets map[string]*S3Storage
}

// NewS3BlobStore wraps a bucket-scoped S3 client into a URI-addressed store.
// Parameters:
//   - base: S3 client whose connection settings are shared across buckets.
// Returns:
//   - *S3BlobStore: URI-addressed store.
func NewS3BlobStore(base *S3Storage) *S3BlobStore {
	return &S3BlobStore{
		base:    base,
		buckets: make(map[string]*S3Storage),
	}
}

func (s *S3BlobStore) handle(bucket string) *S3Storage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.buckets[bucket]; ok {
		return h
	}
	h := s.base.WithBucket(bucket)
	s.buckets[bucket] = h
	return h
}

// Exists checks whether the object at uri exists.
func (s *S3BlobStore) Exists(ctx context.Context, uri string) (bool, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return false, err
	}
	return s.handle(bucket).Exists(ctx, key)
}

// Read fetches the full object body at uri.
func (s *S3BlobStore) Read(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	body, err := s.handle(bucket).Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", uri, err)
	}
	return data, nil
}

// Write stores data at uri and returns the uri written.
func (s *S3BlobStore) Write(ctx context.Context, uri string, data []byte, contentType string) (string, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if err := s.handle(bucket).Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return uri, nil
}

// Delete removes the object at uri.
func (s *S3BlobStore) Delete(ctx context.Context, uri string) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	return s.handle(bucket).Delete(ctx, key)
}

// ListPrefix returns the URIs of all objects under a uri prefix.
func (s *S3BlobStore) ListPrefix(ctx context.Context, uriPrefix string) ([]string, error) {
	bucket, keyPrefix, err := ParseURI(uriPrefix)
	if err != nil {
		return nil, err
	}
	keys, err := s.handle(bucket).List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	uris := make([]string, len(keys))
	for i, key := range keys {
		uris[i] = JoinURI(bucket, key)
	}
	return uris, nil
}

// URL returns an externally fetchable URL for the object at uri.
func (s *S3BlobStore) URL(uri string) (string, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	return s.handle(bucket).GetURL(key), nil
}
