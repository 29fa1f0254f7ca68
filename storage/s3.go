package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appconfig "necc_scraper/config"
)

// S3Archiver keeps a copy of every fetched price page in S3-compatible storage
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver creates a new archiver
func NewS3Archiver(ctx context.Context, cfg appconfig.S3Config) (*S3Archiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// ArchiveKey is the object key for a run's raw page
func ArchiveKey(year, month int, runID uuid.UUID) string {
	return fmt.Sprintf("necc/%04d/%02d/%s.html", year, month, runID)
}

// ArchivePage stores the raw HTML for a run
func (a *S3Archiver) ArchivePage(ctx context.Context, year, month int, runID uuid.UUID, html string) error {
	return a.upload(ctx, ArchiveKey(year, month, runID), strings.NewReader(html), "text/html; charset=utf-8")
}

func (a *S3Archiver) upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
