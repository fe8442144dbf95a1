// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

func init() {
	blobstore.Providers.Register("filesystem", func(_ context.Context, params map[string]string) (blobstore.Backend, error) {
		return New(params["base_dir"])
	})
}

// compile-time check
var _ blobstore.Backend = (*Store)(nil)

// objectMetadata is the on-disk sidecar stored under meta/<key>.json.
type objectMetadata struct {
	Key          string            `json:"key"`
	ContentType  string            `json:"content_type"`
	Size         int64             `json:"size"`
	Public       bool              `json:"public"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store implements blobstore.Backend on a local filesystem.
//
// Layout:
//
//	<baseDir>/data/<key>       — raw object bytes
//	<baseDir>/meta/<key>.json  — JSON metadata sidecar
type Store struct {
	baseDir string
}

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesystem blobstore: base_dir is required")
	}
	for _, sub := range []string{"data", "meta"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) dataPath(key string) string {
	return filepath.Join(s.baseDir, "data", filepath.FromSlash(key))
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.baseDir, "meta", filepath.FromSlash(key)+".json")
}

// validKey rejects empty keys and path traversal.
func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("filesystem: empty object key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("filesystem: invalid object key %q", key)
	}
	return nil
}

// Upload writes content and metadata to disk atomically (temp file + rename).
func (s *Store) Upload(_ context.Context, obj *blobstore.Object) (*blobstore.ObjectInfo, error) {
	if err := validKey(obj.Key); err != nil {
		return nil, err
	}

	dataPath := s.dataPath(obj.Key)
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	if err := writeAtomic(dataPath, obj.Data); err != nil {
		return nil, fmt.Errorf("write content: %w", err)
	}

	meta := objectMetadata{
		Key:          obj.Key,
		ContentType:  obj.ContentType,
		Size:         int64(len(obj.Data)),
		Metadata:     obj.Metadata,
		LastModified: time.Now().UTC(),
	}
	if err := s.writeMetadata(obj.Key, &meta); err != nil {
		return nil, err
	}

	return metaToInfo(&meta), nil
}

// Download returns the raw object bytes.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}

// Delete removes the object content and its metadata sidecar.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := os.Stat(s.metaPath(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
		}
		return fmt.Errorf("stat metadata: %w", err)
	}
	if err := os.Remove(s.dataPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove content: %w", err)
	}
	if err := os.Remove(s.metaPath(key)); err != nil {
		return fmt.Errorf("remove metadata: %w", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.metaPath(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat metadata: %w", err)
	}
	return true, nil
}

// GetMetadata returns object metadata without content.
func (s *Store) GetMetadata(_ context.Context, key string) (*blobstore.ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	meta, err := s.readMetadata(key)
	if err != nil {
		return nil, err
	}
	return metaToInfo(meta), nil
}

// UpdateMetadata replaces the user metadata in the sidecar.
func (s *Store) UpdateMetadata(_ context.Context, key string, metadata map[string]string) (*blobstore.ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	meta, err := s.readMetadata(key)
	if err != nil {
		return nil, err
	}
	meta.Metadata = metadata
	meta.LastModified = time.Now().UTC()
	if err := s.writeMetadata(key, meta); err != nil {
		return nil, err
	}
	return metaToInfo(meta), nil
}

// List walks the metadata tree and returns objects under prefix, sorted by key.
func (s *Store) List(_ context.Context, prefix string, limit int) ([]*blobstore.ObjectInfo, error) {
	if limit <= 0 {
		limit = 1000
	}

	metaRoot := filepath.Join(s.baseDir, "meta")
	var infos []*blobstore.ObjectInfo
	err := filepath.WalkDir(metaRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		rel, err := filepath.Rel(metaRoot, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := s.readMetadata(key)
		if err != nil {
			return nil // skip corrupt entries
		}
		infos = append(infos, metaToInfo(meta))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk metadata: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	if len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// SignedURL is not supported by the filesystem backend.
func (s *Store) SignedURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", blobstore.ErrNotSupported
}

// SetPublic marks an object as publicly readable.
func (s *Store) SetPublic(ctx context.Context, key string) error {
	return s.setVisibility(key, true)
}

// SetPrivate marks an object as private.
func (s *Store) SetPrivate(ctx context.Context, key string) error {
	return s.setVisibility(key, false)
}

func (s *Store) setVisibility(key string, public bool) error {
	if err := validKey(key); err != nil {
		return err
	}
	meta, err := s.readMetadata(key)
	if err != nil {
		return err
	}
	meta.Public = public
	return s.writeMetadata(key, meta)
}

// HealthCheck probes that the base directory is writable.
func (s *Store) HealthCheck(_ context.Context) error {
	f, err := os.CreateTemp(s.baseDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("base dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Close is a no-op for the filesystem store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) readMetadata(key string) (*objectMetadata, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta objectMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", key, err)
	}
	return &meta, nil
}

func (s *Store) writeMetadata(key string, meta *objectMetadata) error {
	metaPath := s.metaPath(key)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(metaPath, data); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func metaToInfo(meta *objectMetadata) *blobstore.ObjectInfo {
	return &blobstore.ObjectInfo{
		Key:          meta.Key,
		ContentType:  meta.ContentType,
		Size:         meta.Size,
		Public:       meta.Public,
		Metadata:     meta.Metadata,
		LastModified: meta.LastModified,
	}
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
