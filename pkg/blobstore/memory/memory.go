// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

func init() {
	blobstore.Providers.Register("memory", func(_ context.Context, _ map[string]string) (blobstore.Backend, error) {
		return New(), nil
	})
}

// compile-time check
var _ blobstore.Backend = (*Store)(nil)

type entry struct {
	info blobstore.ObjectInfo
	data []byte
}

// Store is an in-memory storage backend, used in tests and the dev profile.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]*entry)}
}

// Upload stores an object, overwriting any previous version under the key.
func (s *Store) Upload(_ context.Context, obj *blobstore.Object) (*blobstore.ObjectInfo, error) {
	if obj.Key == "" {
		return nil, fmt.Errorf("memory: empty object key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)

	info := blobstore.ObjectInfo{
		Key:          obj.Key,
		ContentType:  obj.ContentType,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("%d-%d", len(data), time.Now().UnixNano()),
		Metadata:     cloneMetadata(obj.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.objects[obj.Key] = &entry{info: info, data: data}

	cp := info
	return &cp, nil
}

// Download returns the raw object bytes.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return data, nil
}

// Delete removes an object.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

// Exists reports whether an object is stored under the key.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// GetMetadata returns object metadata without content.
func (s *Store) GetMetadata(_ context.Context, key string) (*blobstore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	cp := e.info
	cp.Metadata = cloneMetadata(e.info.Metadata)
	return &cp, nil
}

// UpdateMetadata replaces the user metadata of an object.
func (s *Store) UpdateMetadata(_ context.Context, key string, metadata map[string]string) (*blobstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	e.info.Metadata = cloneMetadata(metadata)
	e.info.LastModified = time.Now().UTC()

	cp := e.info
	cp.Metadata = cloneMetadata(e.info.Metadata)
	return &cp, nil
}

// List returns objects whose key starts with prefix, sorted by key.
func (s *Store) List(_ context.Context, prefix string, limit int) ([]*blobstore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 1000
	}

	var infos []*blobstore.ObjectInfo
	for key, e := range s.objects {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		cp := e.info
		cp.Metadata = cloneMetadata(e.info.Metadata)
		infos = append(infos, &cp)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	if len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// SignedURL is not supported by the in-memory backend.
func (s *Store) SignedURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", blobstore.ErrNotSupported
}

// SetPublic marks an object as publicly readable.
func (s *Store) SetPublic(_ context.Context, key string) error {
	return s.setVisibility(key, true)
}

// SetPrivate marks an object as private.
func (s *Store) SetPrivate(_ context.Context, key string) error {
	return s.setVisibility(key, false)
}

func (s *Store) setVisibility(key string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	e.info.Public = public
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
