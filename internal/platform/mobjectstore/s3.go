// Package mobjectstore wraps AWS S3 for Receipt image blob storage and
// presigned upload URLs (spec.md §4.1's "presign" step). The teacher's own
// go.mod already carries aws-sdk-go-v2 and its secretsmanager client as
// transitive dependencies; this package promotes that same SDK family to a
// direct dependency for the two services SPEC_FULL.md's storage-bindings
// table assigns to AWS (object storage here, Secrets Manager in
// internal/platform/msecrets).
package mobjectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store wraps an S3 client scoped to a single bucket.
type Store struct {
	client       *s3.Client
	presignClient *s3.PresignClient
	bucket       string
}

// New builds a Store bound to bucket around client (typically built with
// s3.NewFromConfig from config.LoadDefaultConfig).
func New(client *s3.Client, bucket string) *Store {
	return &Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}
}

// PresignPut returns a presigned PUT URL for key, valid for ttl, so a
// client can upload a receipt image blob directly to S3 without the
// gateway proxying the bytes (spec.md §4.1 step "presign"). metadata is
// embedded as x-amz-meta-* object metadata (spec.md §6.1's "every object
// put to uploads/ carries metadata trace-id and user-id") — the client
// must send matching headers on its PUT for the signature to validate.
func (s *Store) PresignPut(ctx context.Context, key string, ttl time.Duration, metadata map[string]string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	req, err := s.presignClient.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("mobjectstore: presign put %s: %w", key, err)
	}

	return req.URL, nil
}

// PresignGet returns a presigned GET URL for key, valid for ttl. Nothing in
// this repository calls it: the instant processor reads the object with Get
// and sends the bytes to the vision model inline.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("mobjectstore: presign get %s: %w", key, err)
	}

	return req.URL, nil
}

// Put uploads body directly under key, for server-side paths (e.g. storing
// a compressed thumbnail) that don't go through a presigned client upload.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("mobjectstore: put %s: %w", key, err)
	}

	return nil
}

// Get retrieves the object stored under key.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("mobjectstore: get %s: %w", key, err)
	}

	return out.Body, nil
}

// ListByPrefix returns every object key under prefix, paging through
// ListObjectsV2 — used by the admin delete-account-data operation to find
// every uploaded-but-not-yet-processed image for a user.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("mobjectstore: list %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

// Delete removes the object stored under key, used by the admin
// delete-account-data operation (spec.md §6.3).
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("mobjectstore: delete %s: %w", key, err)
	}

	return nil
}
