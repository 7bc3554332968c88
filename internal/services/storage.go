package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	appcfg "folderly-api/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage stores transcoded images as S3 objects and serves as the
// durable locator authority for them.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

func NewS3Storage(ctx context.Context, cfg *appcfg.Config) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			// Custom endpoint for MinIO-compatible stores
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.S3Bucket, cfg.S3Region)
	if cfg.S3Endpoint != "" {
		baseURL = strings.TrimSuffix(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket + "/"
	}

	return &S3Storage{
		client:  client,
		bucket:  cfg.S3Bucket,
		region:  cfg.S3Region,
		baseURL: baseURL,
	}, nil
}

// Put uploads body under key and returns the object's public URL.
func (s *S3Storage) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return s.baseURL + key, nil
}

// Delete removes the object under key. Deleting a missing key is not an
// error on S3, which matches the best-effort cleanup semantics callers want.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// KeyFromURL recovers the object key from a locator URL previously returned
// by Put. The second return is false when the URL is not ours.
func (s *S3Storage) KeyFromURL(url string) (string, bool) {
	if strings.HasPrefix(url, s.baseURL) {
		return strings.TrimPrefix(url, s.baseURL), true
	}
	// Fall back to "everything after the host" for URLs written by an
	// earlier bucket/endpoint configuration.
	return keyFromGenericURL(url)
}

func keyFromGenericURL(url string) (string, bool) {
	rest, ok := strings.CutPrefix(url, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(url, "http://")
	}
	if !ok {
		return "", false
	}
	_, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
