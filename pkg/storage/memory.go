package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process memory. It backs local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemory returns an empty store whose read URLs are rooted at baseURL.
func NewMemory(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStore{objects: make(map[string]memoryObject), baseURL: baseURL}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, reader io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return "", fmt.Errorf("object %q already exists", key)
	}
	s.objects[key] = memoryObject{contentType: contentType, data: data}
	return key, nil
}

func (s *MemoryStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	object, ok := s.objects[handle]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(object.data)), nil
}

func (s *MemoryStore) ReadURL(_ context.Context, handle string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[handle]; !ok {
		return "", ErrObjectNotFound
	}
	return fmt.Sprintf("%s%s?ttl=%d", s.baseURL, handle, int64(ttl.Seconds())), nil
}

func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, handle)
	return nil
}

// Has reports whether a blob is stored under handle.
func (s *MemoryStore) Has(handle string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[handle]
	return ok
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
