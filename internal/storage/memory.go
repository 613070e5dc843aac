package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/timmy/coursegen/internal/domain"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStorage keeps objects in process. Used for local runs and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	objects   map[string]Object
	publicURL string

	// FailUploads makes every Upload return ErrStorageFailure.
	FailUploads bool
}

func NewMemoryStorage(publicURL string) *MemoryStorage {
	return &MemoryStorage{
		objects:   make(map[string]Object),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if s.FailUploads {
		return fmt.Errorf("%w: upload %s rejected", domain.ErrStorageFailure, key)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", domain.ErrStorageFailure, key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("%w: %s size mismatch: got %d, want %d", domain.ErrStorageFailure, key, len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (s *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, ok := s.Get(key)
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (s *MemoryStorage) GetURL(key string) string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/" + key
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.Get(key)
	return ok, nil
}

// Get returns the object at key.
func (s *MemoryStorage) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists stored keys in order.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
