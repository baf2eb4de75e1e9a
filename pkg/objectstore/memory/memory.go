// Package memory implements objectstore.Store backed by a plain in-process
// map. Data does not survive restart; it exists for tests and local
// development, mirroring tinyobs's storage/memory backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kb9wtx/spotlake/pkg/objectstore"
)

// Store keeps every object in memory behind a mutex. Objects are copied on
// Put and Get so callers can't mutate stored state through a returned slice.
type Store struct {
	mu      sync.RWMutex
	objects map[string]objectstore.Object
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		objects: make(map[string]objectstore.Object),
	}
}

// List returns keys under prefix in lexicographic order.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ListedKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return nil, nil
	}

	out := make([]objectstore.ListedKey, len(keys))
	for i, k := range keys {
		out[i] = objectstore.ListedKey{Key: k}
	}
	return out, nil
}

// Get fetches one object, returning (nil, nil) if key is absent.
func (s *Store) Get(ctx context.Context, key string) (*objectstore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}

	body := make([]byte, len(obj.Body))
	copy(body, obj.Body)
	cp := obj
	cp.Body = body
	return &cp, nil
}

// Put writes body to key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, key string, body []byte, opts objectstore.PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(body))
	copy(stored, body)

	s.objects[key] = objectstore.Object{
		Key:            key,
		Body:           stored,
		ContentType:    opts.ContentType,
		CacheControl:   opts.CacheControl,
		CustomMetadata: opts.CustomMetadata,
	}
	return nil
}

// Len reports how many objects are currently stored, for test assertions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
