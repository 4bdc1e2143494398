// Package storage holds uploaded media for the dev backend.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// Blobs is the object store the media endpoints write to.
type Blobs interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process. Used when MinIO is not configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string
}

// NewMemoryStorage returns an empty store. baseURL prefixes the URLs returned
// by PresignedURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{objects: map[string]memObject{}, baseURL: baseURL}
}

func (s *MemoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short object: read %d of %d bytes", len(data), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), &ObjectInfo{Key: key, Size: int64(len(o.data)), ContentType: o.contentType}, nil
}

func (s *MemoryStorage) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("%s/%s?expires=%d", s.baseURL, key, int(expires.Seconds())), nil
}

var (
	_ Blobs = (*MemoryStorage)(nil)
	_ Blobs = (*MinIOStorage)(nil)
)
