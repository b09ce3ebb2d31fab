package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// PutObjectAPI is the part of *s3.Client the outbox needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	RootUser     string
	RootPassword string
	Region       string
	BaseEndpoint string
}

// NewS3Client builds an S3 client for an S3-compatible store (MinIO in
// development) with static credentials and path-style addressing.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.RootUser,
			c.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// S3OutboxSender stores each message as a JSON object in an outbox bucket.
// Keys are <prefix><yyyy>/<mm>/<dd>/<message id>.json.
type S3OutboxSender struct {
	api    PutObjectAPI
	bucket string
	prefix string
}

func NewS3OutboxSender(api PutObjectAPI, bucket, prefix string) *S3OutboxSender {
	return &S3OutboxSender{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3OutboxSender) key(msg Message) string {
	d := msg.CreatedAt
	return fmt.Sprintf("%s%04d/%02d/%02d/%s.json", s.prefix, d.Year(), d.Month(), d.Day(), msg.ID)
}

func (s *S3OutboxSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(msg)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", s.bucket, err)
	}
	return nil
}
