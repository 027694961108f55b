// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3 implements source.ReelSource over an S3 (or MinIO-compatible)
// bucket, grounded on the teacher's pkg/filestore/s3 backend. Objects are
// addressed as <prefix><dir>/<name>, letting a CI pipeline keep its
// filmReel fixtures in the same bucket it already uses for build
// artifacts instead of checking them into the repo under test.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mkatychev/darkroom/pkg/source"
)

func init() {
	source.Providers.Register("s3", func(ctx context.Context, params map[string]string) (source.ReelSource, error) {
		return New(ctx, Options{
			Bucket:   params["bucket"],
			Region:   params["region"],
			Prefix:   params["prefix"],
			Endpoint: params["endpoint"],
		})
	})
}

var _ source.ReelSource = (*Store)(nil)

// Options configures the S3 backend.
type Options struct {
	Bucket   string // required
	Region   string // e.g. "us-east-1"
	Prefix   string // key prefix, e.g. "filmreel/"
	Endpoint string // custom endpoint for MinIO compatibility
}

// Store reads Reel fixtures out of an S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3-backed ReelSource.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 reel source: bucket is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	return &Store{
		client: s3.NewFromConfig(cfg, s3Opts...),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *Store) key(dir, name string) string {
	return s.prefix + strings.TrimSuffix(dir, "/") + "/" + name
}

// List returns the base names of every object directly under <prefix>dir/.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	keyPrefix := s.prefix + strings.TrimSuffix(dir, "/") + "/"

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(keyPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", keyPrefix, err)
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), keyPrefix))
		}
	}
	return names, nil
}

// ReadFile downloads the object at <prefix>dir/name.
func (s *Store) ReadFile(ctx context.Context, dir, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(dir, name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", dir, name, source.ErrNotFound)
		}
		return nil, fmt.Errorf("get object %s/%s: %w", dir, name, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read object body %s/%s: %w", dir, name, err)
	}
	return buf.Bytes(), nil
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
