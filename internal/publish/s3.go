// Package publish uploads built bundles to S3-compatible object storage
// so they can be served as a static site or pulled by a CDN. Objects are
// keyed by project and bundle digest, which makes every published bundle
// immutable and lets multiple versions coexist in one bucket.
package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/model"
)

// S3Client wraps the AWS S3 client for bundle uploads.
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client creates an S3 client from the user configuration.
// A custom endpoint (MinIO, localstack) is honored when set; path-style
// addressing is always enabled because S3-compatible services generally
// require it.
func NewS3Client(cfg *config.Config) (*S3Client, error) {
	if cfg.S3Bucket == "" {
		return nil, model.NewCLIError(
			model.ExitPublishFailed,
			"no S3 bucket configured — set s3_bucket in the stagehand config or STAGEHAND_S3_BUCKET",
		)
	}

	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.S3Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.S3Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // required for MinIO and other S3-compatible services
	})

	return &S3Client{
		client: client,
		bucket: cfg.S3Bucket,
	}, nil
}

// Put uploads one object with its content type.
func (c *S3Client) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}
