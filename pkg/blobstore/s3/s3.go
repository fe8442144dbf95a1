// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

func init() {
	blobstore.Providers.Register("s3", func(ctx context.Context, params map[string]string) (blobstore.Backend, error) {
		return New(ctx, Options{
			Bucket:   params["bucket"],
			Region:   params["region"],
			Prefix:   params["prefix"],
			Endpoint: params["endpoint"],
		})
	})
}

// compile-time check
var _ blobstore.Backend = (*Store)(nil)

// visibilityTag marks an object as publicly readable. Visibility is tracked
// with object tagging rather than ACLs so it works on MinIO and on buckets
// with ACLs disabled.
const visibilityTag = "visibility"

// Options configures the S3 backend.
type Options struct {
	Bucket   string // required
	Region   string // e.g. "us-east-1"
	Prefix   string // key prefix, e.g. "objects/"
	Endpoint string // custom endpoint for MinIO compatibility
}

// Store implements blobstore.Backend backed by S3 (or MinIO).
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// New creates an S3-backed Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 blobstore: bucket is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
	}, nil
}

func (s *Store) objectKey(key string) string {
	return s.prefix + key
}

// Upload puts the object content with its content type and user metadata.
func (s *Store) Upload(ctx context.Context, obj *blobstore.Object) (*blobstore.ObjectInfo, error) {
	if obj.Key == "" {
		return nil, fmt.Errorf("s3: empty object key")
	}

	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.objectKey(obj.Key)),
		Body:     bytes.NewReader(obj.Data),
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &blobstore.ObjectInfo{
		Key:          obj.Key,
		ContentType:  obj.ContentType,
		Size:         int64(len(obj.Data)),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:     obj.Metadata,
		LastModified: time.Now().UTC(),
	}, nil
}

// Download returns the raw object bytes.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

// Delete removes the object. Missing objects are reported as ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject is idempotent; check existence first so callers get
	// the shared not-found sentinel.
	if _, err := s.head(ctx, key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.head(ctx, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetMetadata returns object metadata from a HEAD request plus the
// visibility tag.
func (s *Store) GetMetadata(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	head, err := s.head(ctx, key)
	if err != nil {
		return nil, err
	}

	public, err := s.isPublic(ctx, key)
	if err != nil {
		return nil, err
	}

	return &blobstore.ObjectInfo{
		Key:          key,
		ContentType:  aws.ToString(head.ContentType),
		Size:         aws.ToInt64(head.ContentLength),
		ETag:         strings.Trim(aws.ToString(head.ETag), `"`),
		Public:       public,
		Metadata:     head.Metadata,
		LastModified: aws.ToTime(head.LastModified),
	}, nil
}

// UpdateMetadata replaces the user metadata via an in-place copy with
// MetadataDirective REPLACE.
func (s *Store) UpdateMetadata(ctx context.Context, key string, metadata map[string]string) (*blobstore.ObjectInfo, error) {
	head, err := s.head(ctx, key)
	if err != nil {
		return nil, err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(s.objectKey(key)),
		CopySource:        aws.String(s.bucket + "/" + s.objectKey(key)),
		ContentType:       head.ContentType,
		Metadata:          metadata,
		MetadataDirective: s3types.MetadataDirectiveReplace,
	})
	if err != nil {
		return nil, fmt.Errorf("replace metadata: %w", err)
	}

	return s.GetMetadata(ctx, key)
}

// List returns objects under prefix. Listing results carry key, size, ETag
// and modification time; user metadata requires a per-object GetMetadata.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]*blobstore.ObjectInfo, error) {
	if limit <= 0 {
		limit = 1000
	}

	var infos []*blobstore.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})

	for paginator.HasMorePages() && len(infos) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			infos = append(infos, &blobstore.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
			if len(infos) >= limit {
				break
			}
		}
	}
	return infos, nil
}

// SignedURL returns a presigned GET URL for the object.
func (s *Store) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := s.head(ctx, key); err != nil {
		return "", err
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}

// SetPublic tags the object as publicly readable.
func (s *Store) SetPublic(ctx context.Context, key string) error {
	return s.setVisibility(ctx, key, "public")
}

// SetPrivate tags the object as private.
func (s *Store) SetPrivate(ctx context.Context, key string) error {
	return s.setVisibility(ctx, key, "private")
}

func (s *Store) setVisibility(ctx context.Context, key, value string) error {
	if _, err := s.head(ctx, key); err != nil {
		return err
	}

	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Tagging: &s3types.Tagging{
			TagSet: []s3types.Tag{
				{Key: aws.String(visibilityTag), Value: aws.String(value)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("tag object: %w", err)
	}
	return nil
}

func (s *Store) isPublic(ctx context.Context, key string) (bool, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
		}
		return false, fmt.Errorf("get object tagging: %w", err)
	}
	for _, tag := range out.TagSet {
		if aws.ToString(tag.Key) == visibilityTag {
			return aws.ToString(tag.Value) == "public", nil
		}
	}
	return false, nil
}

// HealthCheck probes bucket reachability with a HEAD request.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op for the S3 store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s: %w", key, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("head object: %w", err)
	}
	return out, nil
}

// isNotFound checks whether the error indicates a missing S3 object.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// Some S3-compatible services return a generic "NotFound" status.
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
