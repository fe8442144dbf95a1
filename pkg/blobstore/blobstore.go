// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore defines the capability contract that every storage
// backend must satisfy. The gateway core dispatches operations against this
// interface and never depends on a concrete implementation.
package blobstore

import (
	"context"
	"errors"
	"time"

	"github.com/storagegw/storagegw/pkg/provider"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrNotSupported is returned by backends that cannot implement an
// operation (e.g. signed URLs on the filesystem backend). The gateway
// treats it like any other failure and may fall back to another provider.
var ErrNotSupported = errors.New("operation not supported by backend")

// Providers is the registry of storage backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/storagegw/storagegw/pkg/blobstore/memory"
//	import _ "github.com/storagegw/storagegw/pkg/blobstore/filesystem"
//	import _ "github.com/storagegw/storagegw/pkg/blobstore/s3"
//	import _ "github.com/storagegw/storagegw/pkg/blobstore/sqlite"
//	import _ "github.com/storagegw/storagegw/pkg/blobstore/postgres"
var Providers = provider.NewRegistry[Backend]("storage_backend")

// Object is the input record for an upload.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
	Metadata    map[string]string
}

// ObjectInfo describes a stored object. Data is never included; content is
// retrieved separately via Download.
type ObjectInfo struct {
	Key          string            `json:"key"`
	ContentType  string            `json:"content_type"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag,omitempty"`
	Public       bool              `json:"public"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Backend is the interface every storage backend implements. Each method
// returns either a success payload or an error; the gateway core only
// classifies outcomes as success or failure and never inspects
// backend-internal errors beyond the shared sentinels above.
type Backend interface {
	Upload(ctx context.Context, obj *Object) (*ObjectInfo, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetMetadata(ctx context.Context, key string) (*ObjectInfo, error)
	UpdateMetadata(ctx context.Context, key string, metadata map[string]string) (*ObjectInfo, error)
	List(ctx context.Context, prefix string, limit int) ([]*ObjectInfo, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	SetPublic(ctx context.Context, key string) error
	SetPrivate(ctx context.Context, key string) error

	// HealthCheck probes backend reachability. A nil return means healthy.
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
