// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstoretest provides a shared conformance test suite for
// blobstore.Backend implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package blobstoretest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

// RunConformanceTests exercises a Backend implementation against the shared
// contract. The newStore function is called once per sub-test to provide an
// isolated backend instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) blobstore.Backend) {
	t.Helper()

	t.Run("UploadAndDownload", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		content := []byte("hello gateway")
		obj := &blobstore.Object{
			Key:         "docs/hello.txt",
			ContentType: "text/plain",
			Size:        int64(len(content)),
			Data:        content,
			Metadata:    map[string]string{"owner": "tests"},
		}

		info, err := store.Upload(ctx, obj)
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if info.Key != obj.Key {
			t.Errorf("Upload info key = %q, want %q", info.Key, obj.Key)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Upload info size = %d, want %d", info.Size, len(content))
		}

		got, err := store.Download(ctx, obj.Key)
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("content mismatch: got %q, want %q", got, content)
		}
	})

	t.Run("ExistsAndMetadata", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		obj := &blobstore.Object{
			Key:         "meta/a.bin",
			ContentType: "application/octet-stream",
			Data:        []byte("abc"),
			Metadata:    map[string]string{"k": "v"},
		}
		if _, err := store.Upload(ctx, obj); err != nil {
			t.Fatalf("Upload: %v", err)
		}

		ok, err := store.Exists(ctx, obj.Key)
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if !ok {
			t.Error("Exists = false after upload")
		}

		ok, err = store.Exists(ctx, "meta/nonexistent")
		if err != nil {
			t.Fatalf("Exists(nonexistent): %v", err)
		}
		if ok {
			t.Error("Exists = true for missing object")
		}

		info, err := store.GetMetadata(ctx, obj.Key)
		if err != nil {
			t.Fatalf("GetMetadata: %v", err)
		}
		if info.Size != 3 {
			t.Errorf("metadata size = %d, want 3", info.Size)
		}
		if info.Metadata["k"] != "v" {
			t.Errorf("metadata = %v, want k=v", info.Metadata)
		}
	})

	t.Run("UpdateMetadata", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		obj := &blobstore.Object{
			Key:      "meta/update.txt",
			Data:     []byte("x"),
			Metadata: map[string]string{"old": "1"},
		}
		if _, err := store.Upload(ctx, obj); err != nil {
			t.Fatalf("Upload: %v", err)
		}

		info, err := store.UpdateMetadata(ctx, obj.Key, map[string]string{"new": "2"})
		if err != nil {
			t.Fatalf("UpdateMetadata: %v", err)
		}
		if info.Metadata["new"] != "2" {
			t.Errorf("metadata = %v, want new=2", info.Metadata)
		}
		if _, ok := info.Metadata["old"]; ok {
			t.Errorf("old metadata survived replace: %v", info.Metadata)
		}

		_, err = store.UpdateMetadata(ctx, "meta/nonexistent", map[string]string{"a": "b"})
		if !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("UpdateMetadata(nonexistent) = %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		obj := &blobstore.Object{Key: "del/one.txt", Data: []byte("del")}
		if _, err := store.Upload(ctx, obj); err != nil {
			t.Fatalf("Upload: %v", err)
		}

		if err := store.Delete(ctx, obj.Key); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		_, err := store.Download(ctx, obj.Key)
		if !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("Download after delete = %v, want ErrNotFound", err)
		}

		err = store.Delete(ctx, obj.Key)
		if !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		if _, err := store.Download(ctx, "missing/x"); !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("Download expected ErrNotFound, got: %v", err)
		}
		if _, err := store.GetMetadata(ctx, "missing/x"); !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("GetMetadata expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("ListWithPrefix", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		keys := []string{"list/a.txt", "list/b.txt", "list/sub/c.txt", "other/d.txt"}
		for _, key := range keys {
			obj := &blobstore.Object{Key: key, Data: []byte("x")}
			if _, err := store.Upload(ctx, obj); err != nil {
				t.Fatalf("Upload(%s): %v", key, err)
			}
		}

		infos, err := store.List(ctx, "list/", 100)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(infos) != 3 {
			t.Errorf("List(list/) returned %d objects, want 3", len(infos))
		}
		for i := 1; i < len(infos); i++ {
			if infos[i].Key < infos[i-1].Key {
				t.Errorf("objects not sorted by key at index %d", i)
			}
		}

		infos, err = store.List(ctx, "list/", 2)
		if err != nil {
			t.Fatalf("List with limit: %v", err)
		}
		if len(infos) != 2 {
			t.Errorf("List with limit=2 returned %d objects", len(infos))
		}
	})

	t.Run("Visibility", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		obj := &blobstore.Object{Key: "vis/pub.txt", Data: []byte("v")}
		if _, err := store.Upload(ctx, obj); err != nil {
			t.Fatalf("Upload: %v", err)
		}

		if err := store.SetPublic(ctx, obj.Key); err != nil {
			t.Fatalf("SetPublic: %v", err)
		}
		info, err := store.GetMetadata(ctx, obj.Key)
		if err != nil {
			t.Fatalf("GetMetadata: %v", err)
		}
		if !info.Public {
			t.Error("Public = false after SetPublic")
		}

		if err := store.SetPrivate(ctx, obj.Key); err != nil {
			t.Fatalf("SetPrivate: %v", err)
		}
		info, err = store.GetMetadata(ctx, obj.Key)
		if err != nil {
			t.Fatalf("GetMetadata: %v", err)
		}
		if info.Public {
			t.Error("Public = true after SetPrivate")
		}

		if err := store.SetPublic(ctx, "vis/nonexistent"); !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("SetPublic(nonexistent) = %v, want ErrNotFound", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		key := "over/write.txt"
		for i := 0; i < 2; i++ {
			obj := &blobstore.Object{Key: key, Data: []byte(fmt.Sprintf("version-%d", i))}
			if _, err := store.Upload(ctx, obj); err != nil {
				t.Fatalf("Upload[%d]: %v", i, err)
			}
		}

		got, err := store.Download(ctx, key)
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if string(got) != "version-1" {
			t.Errorf("content = %q, want latest version", got)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		if err := store.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck on a live backend: %v", err)
		}
	})
}
