// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory_test

import (
	"testing"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/blobstore/blobstoretest"
	"github.com/storagegw/storagegw/pkg/blobstore/memory"
)

func TestMemoryConformance(t *testing.T) {
	blobstoretest.RunConformanceTests(t, func(t *testing.T) blobstore.Backend {
		return memory.New()
	})
}
