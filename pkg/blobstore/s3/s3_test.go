// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/blobstore/blobstoretest"
	bss3 "github.com/storagegw/storagegw/pkg/blobstore/s3"
)

func TestS3Conformance(t *testing.T) {
	bucket := os.Getenv("BLOB_STORE_S3_BUCKET")
	endpoint := os.Getenv("BLOB_STORE_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("Skipping S3 conformance tests: BLOB_STORE_S3_BUCKET and BLOB_STORE_S3_ENDPOINT must be set (e.g. with MinIO)")
	}

	region := os.Getenv("BLOB_STORE_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	blobstoretest.RunConformanceTests(t, func(t *testing.T) blobstore.Backend {
		store, err := bss3.New(context.Background(), bss3.Options{
			Bucket:   bucket,
			Region:   region,
			Prefix:   "test-" + t.Name() + "/",
			Endpoint: endpoint,
		})
		if err != nil {
			t.Fatalf("s3.New: %v", err)
		}
		return store
	})
}
