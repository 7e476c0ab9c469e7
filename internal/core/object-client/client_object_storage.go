package objectclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/config"
	"github.com/markdave123-py/inboxpress/internal/core"
)

var _ core.ObjectClient = (*S3Client)(nil)

type S3Client struct {
	uploader *manager.Uploader
	region   string
	bucket   string
	endpoint string
}

// NewS3Client connects to AWS S3, or to any S3 compatible store when
// S3_ENDPOINT is set (path-style addressing).
func NewS3Client(ctx context.Context, cfg *config.Config, log *zap.Logger) (*S3Client, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.AwsRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.S3Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	log.Info("object storage ready", zap.String("bucket", cfg.BucketName), zap.String("endpoint", endpoint))

	return &S3Client{
		uploader: manager.NewUploader(client),
		region:   cfg.AwsRegion,
		bucket:   cfg.BucketName,
		endpoint: endpoint,
	}, nil
}

// UploadFile uploads data under key and returns the object URL.
func (c *S3Client) UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err := c.uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return objectURL(c.endpoint, c.bucket, c.region, key), nil
}

func objectURL(endpoint, bucket, region, key string) string {
	if endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", endpoint, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
