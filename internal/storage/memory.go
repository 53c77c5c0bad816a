package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"grievance/pkg/platform/sentinel"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// InMemory keeps objects in a map. URLs point at BaseURL.
type InMemory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

// NewInMemory serves URLs under baseURL.
func NewInMemory(baseURL string) *InMemory {
	return &InMemory{objects: make(map[string]memoryObject), baseURL: baseURL}
}

func (s *InMemory) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	return nil
}

func (s *InMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("object %s: %w", key, sentinel.ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

func (s *InMemory) URL(_ context.Context, key string) (string, error) {
	return s.baseURL + "/" + key, nil
}

// Get returns the stored bytes and content type.
func (s *InMemory) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.data, obj.contentType, ok
}

func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
