package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RawTextStoreConfig holds configuration for RawTextStore
type RawTextStoreConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// RawTextStore keeps the full extracted text of each document in
// S3-compatible object storage. The database row carries only a bounded
// preview; reprocessing reads the full text back from here.
type RawTextStore struct {
	client *s3.Client
	bucket string
}

// NewRawTextStore creates a new RawTextStore with the given configuration
func NewRawTextStore(ctx context.Context, cfg RawTextStoreConfig) (*RawTextStore, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for S3-compatible services (MinIO, RustFS)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &RawTextStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// PutDocumentText stores a document's full text and returns its storage key.
func (s *RawTextStore) PutDocumentText(ctx context.Context, ownerID, documentID, text string) (string, error) {
	key := textKey(ownerID, documentID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(text)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store document text: %w", err)
	}

	return key, nil
}

// GetDocumentText reads a document's full text back by storage key.
func (s *RawTextStore) GetDocumentText(ctx context.Context, storageKey string) (string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch document text: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read document text: %w", err)
	}

	return string(data), nil
}

// DeleteDocumentText removes a document's stored text.
func (s *RawTextStore) DeleteDocumentText(ctx context.Context, storageKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document text: %w", err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *RawTextStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func textKey(ownerID, documentID string) string {
	return strings.Join([]string{"documents", ownerID, documentID + ".txt"}, "/")
}
