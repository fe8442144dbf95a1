// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/blobstore/blobstoretest"
	"github.com/storagegw/storagegw/pkg/blobstore/sqlite"
)

func TestSQLiteConformance(t *testing.T) {
	blobstoretest.RunConformanceTests(t, func(t *testing.T) blobstore.Backend {
		store, err := sqlite.New(filepath.Join(t.TempDir(), "objects.db"))
		if err != nil {
			t.Fatalf("sqlite.New: %v", err)
		}
		return store
	})
}
