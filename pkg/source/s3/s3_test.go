// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package s3_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mkatychev/darkroom/pkg/source"
	sources3 "github.com/mkatychev/darkroom/pkg/source/s3"
)

// TestS3Conformance exercises a real S3-compatible endpoint (e.g. MinIO) and
// is skipped unless DARKROOM_TEST_S3_BUCKET/_ENDPOINT are set, matching the
// teacher's MinIO-gated filestore conformance test.
func TestS3Conformance(t *testing.T) {
	bucket := os.Getenv("DARKROOM_TEST_S3_BUCKET")
	endpoint := os.Getenv("DARKROOM_TEST_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("skipping S3 reel source test: DARKROOM_TEST_S3_BUCKET and DARKROOM_TEST_S3_ENDPOINT must be set (e.g. with MinIO)")
	}

	ctx := context.Background()
	store, err := sources3.New(ctx, sources3.Options{
		Bucket:   bucket,
		Region:   "us-east-1",
		Prefix:   "test-" + t.Name() + "/",
		Endpoint: endpoint,
	})
	if err != nil {
		t.Fatalf("s3.New: %v", err)
	}

	if _, err := store.ReadFile(ctx, "reels", "missing.fr.json"); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("ReadFile() on missing object = %v, want source.ErrNotFound", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := sources3.New(context.Background(), sources3.Options{})
	if err == nil {
		t.Fatal("expected error when bucket is empty")
	}
}
