// Package storage keeps uploaded media in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"memory-map-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store stores media objects and builds their public URLs
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store creates a store for the configured bucket. Static credentials
// are used when an access key is configured, the default chain otherwise.
func NewS3Store(ctx context.Context, cfg config.AWSConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
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

	return &S3Store{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: PublicBaseURL(cfg),
	}, nil
}

// PublicBaseURL returns the URL prefix under which objects of the bucket are served
func PublicBaseURL(cfg config.AWSConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.S3Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.Region)
	}
}

// Put uploads an object and returns its public URL
func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return s.URLFor(key), nil
}

// Delete removes an object by key
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object whose key starts with prefix and
// returns how many were removed
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	removed := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if err := s.Delete(ctx, aws.ToString(obj.Key)); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// KeyOf returns the key behind a public URL of this bucket
func (s *S3Store) KeyOf(rawURL string) (string, bool) {
	return KeyFromURL(s.baseURL, rawURL)
}

// URLFor returns the public URL of a key
func (s *S3Store) URLFor(key string) string {
	return s.baseURL + "/" + (&url.URL{Path: key}).EscapedPath()
}

// KeyFromURL extracts the object key from a public URL built on baseURL
func KeyFromURL(baseURL, rawURL string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
