// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

func init() {
	blobstore.Providers.Register("sqlite", func(_ context.Context, params map[string]string) (blobstore.Backend, error) {
		return New(params["path"])
	})
}

// compile-time check
var _ blobstore.Backend = (*Store)(nil)

// Store implements blobstore.Backend on a single-file SQLite database.
// Content is stored as a BLOB alongside its metadata, which makes it a
// convenient embedded backend for small deployments and tests.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path, e.g. "objects.db"
// or ":memory:".
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite blobstore: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// modernc.org/sqlite serializes access through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		content_type TEXT NOT NULL DEFAULT '',
		data BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		public INTEGER NOT NULL DEFAULT 0,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("sqlite create tables: %w", err)
	}
	return nil
}

// Upload inserts or replaces the object under its key.
func (s *Store) Upload(ctx context.Context, obj *blobstore.Object) (*blobstore.ObjectInfo, error) {
	if obj.Key == "" {
		return nil, fmt.Errorf("sqlite: empty object key")
	}

	metaJSON, err := marshalMetadata(obj.Metadata)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(obj.Data)
	etag := hex.EncodeToString(sum[:])
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `INSERT INTO objects
		(key, content_type, data, metadata, public, etag, last_modified)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content_type = excluded.content_type,
			data = excluded.data,
			metadata = excluded.metadata,
			etag = excluded.etag,
			last_modified = excluded.last_modified`,
		obj.Key, obj.ContentType, obj.Data, metaJSON, etag, now)
	if err != nil {
		return nil, fmt.Errorf("sqlite upsert object: %w", err)
	}

	return &blobstore.ObjectInfo{
		Key:          obj.Key,
		ContentType:  obj.ContentType,
		Size:         int64(len(obj.Data)),
		ETag:         etag,
		Metadata:     obj.Metadata,
		LastModified: now,
	}, nil
}

// Download returns the raw object bytes.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM objects WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite select data: %w", err)
	}
	return data, nil
}

// Delete removes the object row.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite delete object: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	return nil
}

// Exists reports whether the object row is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM objects WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite select: %w", err)
	}
	return true, nil
}

// GetMetadata returns object metadata without content.
func (s *Store) GetMetadata(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT content_type, length(data), metadata, public, etag, last_modified
		FROM objects WHERE key = ?`, key)
	return scanInfo(row, key)
}

// UpdateMetadata replaces the user metadata of an object.
func (s *Store) UpdateMetadata(ctx context.Context, key string, metadata map[string]string) (*blobstore.ObjectInfo, error) {
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE objects SET metadata = ?, last_modified = ? WHERE key = ?`,
		metaJSON, time.Now().UTC(), key)
	if err != nil {
		return nil, fmt.Errorf("sqlite update metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	return s.GetMetadata(ctx, key)
}

// List returns objects whose key starts with prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]*blobstore.ObjectInfo, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, content_type, length(data), metadata, public, etag, last_modified
		FROM objects WHERE key LIKE ? || '%' ORDER BY key LIMIT ?`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite list objects: %w", err)
	}
	defer rows.Close()

	var infos []*blobstore.ObjectInfo
	for rows.Next() {
		var (
			info     blobstore.ObjectInfo
			metaJSON string
		)
		if err := rows.Scan(&info.Key, &info.ContentType, &info.Size, &metaJSON, &info.Public, &info.ETag, &info.LastModified); err != nil {
			return nil, fmt.Errorf("sqlite scan object: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &info.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", info.Key, err)
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

// SignedURL is not supported by the SQLite backend.
func (s *Store) SignedURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", blobstore.ErrNotSupported
}

// SetPublic marks an object as publicly readable.
func (s *Store) SetPublic(ctx context.Context, key string) error {
	return s.setVisibility(ctx, key, true)
}

// SetPrivate marks an object as private.
func (s *Store) SetPrivate(ctx context.Context, key string) error {
	return s.setVisibility(ctx, key, false)
}

func (s *Store) setVisibility(ctx context.Context, key string, public bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE objects SET public = ? WHERE key = ?`, public, key)
	if err != nil {
		return fmt.Errorf("sqlite update visibility: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	return nil
}

// HealthCheck probes the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("sqlite probe: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

func scanInfo(row *sql.Row, key string) (*blobstore.ObjectInfo, error) {
	var (
		info     blobstore.ObjectInfo
		metaJSON string
	)
	err := row.Scan(&info.ContentType, &info.Size, &metaJSON, &info.Public, &info.ETag, &info.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite scan object: %w", err)
	}
	info.Key = key
	if err := json.Unmarshal([]byte(metaJSON), &info.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", key, err)
	}
	return &info, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}
