// Package s3 implements storage.ObjectStore on an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/storage"
)

// Store issues pre-signed grants and deletes objects in one bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  zerolog.Logger
}

// New creates a Store from the storage configuration.
// Static credentials are used when both keys are set; otherwise the default
// AWS credential chain applies.
func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Str("endpoint", cfg.Endpoint).
		Msg("object storage configured")

	return NewWithClient(client, cfg.Bucket, logger), nil
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client *s3.Client, bucket string, logger zerolog.Logger) *Store {
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		logger:  logger.With().Str("component", "s3").Logger(),
	}
}

// PresignUpload issues a PUT grant for key.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (*storage.PresignedRequest, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}

	return &storage.PresignedRequest{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   signedHeaders(req.SignedHeader),
		ExpiresAt: time.Now().UTC().Add(expiry),
	}, nil
}

// PresignDownload issues a GET grant for key.
func (s *Store) PresignDownload(ctx context.Context, key, fileName string, expiry time.Duration) (*storage.PresignedRequest, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		input.ResponseContentDisposition = aws.String(storage.ContentDisposition(fileName))
	}

	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign download for %s: %w", key, err)
	}

	return &storage.PresignedRequest{
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: time.Now().UTC().Add(expiry),
	}, nil
}

// Delete removes the object at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Msg("deleted object")
	return nil
}

// signedHeaders drops Host, which HTTP clients set themselves.
func signedHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if http.CanonicalHeaderKey(k) == "Host" {
			continue
		}
		out[k] = v
	}
	return out
}

// Ensure Store implements storage.ObjectStore.
var _ storage.ObjectStore = (*Store)(nil)
