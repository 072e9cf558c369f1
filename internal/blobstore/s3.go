package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"visionary/internal/config"
)

// S3 stores blobs in an S3-compatible bucket.
type S3 struct {
	bucket        string
	publicBaseURL string
	uploader      *manager.Uploader
}

// NewS3 resolves AWS credentials from cfg or the default chain. A custom
// endpoint switches to path-style addressing for S3-compatible services.
func NewS3(ctx context.Context, cfg config.S3Store, publicBaseURL string) (*S3, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{
		bucket:        cfg.Bucket,
		publicBaseURL: publicBaseURL,
		uploader:      manager.NewUploader(client),
	}, nil
}

func (s *S3) Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	pathname, err := cleanPathname(pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(pathname),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return BlobInfo{}, fmt.Errorf("s3 upload %s: %w", pathname, err)
	}
	return BlobInfo{
		URL:         publicURL(s.publicBaseURL, pathname, out.Location),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        int64(len(body)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (s *S3) Close() error { return nil }
