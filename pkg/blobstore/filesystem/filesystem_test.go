// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem_test

import (
	"testing"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/blobstore/blobstoretest"
	"github.com/storagegw/storagegw/pkg/blobstore/filesystem"
)

func TestFilesystemConformance(t *testing.T) {
	blobstoretest.RunConformanceTests(t, func(t *testing.T) blobstore.Backend {
		store, err := filesystem.New(t.TempDir())
		if err != nil {
			t.Fatalf("filesystem.New: %v", err)
		}
		return store
	})
}
