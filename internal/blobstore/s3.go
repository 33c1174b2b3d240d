package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config addresses a bucket. Endpoint is optional and switches to
// path-style addressing for S3 compatible servers such as MinIO.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// S3Store keeps blobs as objects in one bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, s3Config S3Config) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s3Config.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s3Config.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Config.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client: client,
		bucket: s3Config.Bucket,
		region: s3Config.Region,
	}, nil
}

// Write uploads data under key.
func (s3s *S3Store) Write(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s3s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Read downloads the object under key.
func (s3s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	result, err := s3s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	return data, nil
}

// Delete removes the object under key.
func (s3s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s3s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s3s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s3s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s3s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// Ping checks that the bucket is reachable.
func (s3s *S3Store) Ping(ctx context.Context) error {
	_, err := s3s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s3s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s unavailable: %w", s3s.bucket, err)
	}
	return nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s3s *S3Store) EnsureBucket(ctx context.Context) error {
	if s3s.Ping(ctx) == nil {
		return nil
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(s3s.bucket)}
	if s3s.region != "" && s3s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s3s.region),
		}
	}
	if _, err := s3s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s3s.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
