// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"os"
	"testing"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/blobstore/blobstoretest"
	"github.com/storagegw/storagegw/pkg/blobstore/postgres"
)

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("BLOB_STORE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL conformance tests: BLOB_STORE_POSTGRES_DSN must be set")
	}

	blobstoretest.RunConformanceTests(t, func(t *testing.T) blobstore.Backend {
		store, err := postgres.New(dsn)
		if err != nil {
			t.Fatalf("postgres.New: %v", err)
		}
		// Sub-tests share the database; start each one from a clean table.
		if err := store.TruncateForTest(); err != nil {
			t.Fatalf("truncate objects: %v", err)
		}
		return store
	})
}
