// Package storage archives uploaded document originals in S3-compatible
// object storage so a source can be re-extracted and re-ingested later.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveConfig holds configuration for the document archive.
type ArchiveConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// Archive stores raw uploaded documents under their source id.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive creates an Archive with the given configuration.
func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	// Custom resolver for S3-compatible endpoints (MinIO and friends)
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

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

// Put stores the raw document body under the source id.
func (a *Archive) Put(ctx context.Context, sourceID, contentType string, body io.Reader) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey(sourceID)),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to archive document %q: %w", sourceID, err)
	}
	return nil
}

// Get retrieves the archived original for a source. The caller closes the
// returned reader.
func (a *Archive) Get(ctx context.Context, sourceID string) (io.ReadCloser, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(sourceID)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived document %q: %w", sourceID, err)
	}
	return out.Body, nil
}

// Delete removes the archived original for a source.
func (a *Archive) Delete(ctx context.Context, sourceID string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(sourceID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete archived document %q: %w", sourceID, err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func objectKey(sourceID string) string {
	return "documents/" + sourceID
}
