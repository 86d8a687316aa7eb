package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/socialchef/scribe/internal/errors"
)

const ContentTypeText = "text/plain"

// ObjectRef identifies one object in a bucket.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Key)
}

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PutBucketNotificationConfiguration(ctx context.Context, params *s3.PutBucketNotificationConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketNotificationConfigurationOutput, error)
}

// Presigner is the subset of s3.PresignClient used here.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client wraps S3 for the pipeline. It is built once per process and is safe
// for concurrent use.
type Client struct {
	api       S3API
	presigner Presigner
}

// NewClient loads the default AWS configuration (the Lambda role inside AWS)
// and builds an S3 client from it.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg.ApplyDefaults()

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	api := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewFromAPI(api, s3.NewPresignClient(api)), nil
}

// NewFromAPI builds a Client from existing S3 and presign clients.
func NewFromAPI(api S3API, presigner Presigner) *Client {
	return &Client{api: api, presigner: presigner}
}

// PresignGet returns a time-limited GET URL for ref.
func (c *Client) PresignGet(ctx context.Context, ref ObjectRef, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", wrapError("failed to presign "+ref.String(), "STORAGE_PRESIGN_FAILED", err)
	}
	return req.URL, nil
}

// PutText writes text to ref as a text/plain object, replacing any existing object.
func (c *Client) PutText(ctx context.Context, ref ObjectRef, text string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ref.Bucket),
		Key:         aws.String(ref.Key),
		Body:        strings.NewReader(text),
		ContentType: aws.String(ContentTypeText),
	})
	if err != nil {
		return wrapError("failed to write "+ref.String(), "STORAGE_PUT_FAILED", err)
	}
	return nil
}

// PutNotificationConfiguration replaces the bucket's entire notification
// configuration. A nil configuration clears it.
func (c *Client) PutNotificationConfiguration(ctx context.Context, bucket string, nc *s3types.NotificationConfiguration) error {
	if nc == nil {
		nc = &s3types.NotificationConfiguration{}
	}
	_, err := c.api.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket:                    aws.String(bucket),
		NotificationConfiguration: nc,
	})
	if err != nil {
		return wrapError("failed to update notification configuration on bucket "+bucket, "STORAGE_NOTIFICATION_FAILED", err)
	}
	return nil
}

// wrapError turns an SDK error into a storage AppError, keeping the S3 error
// code (AccessDenied, NoSuchBucket, ...) in the message.
func wrapError(message, code string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		message = fmt.Sprintf("%s (%s)", message, apiErr.ErrorCode())
	}
	return apperrors.NewStorageError(message, code, err)
}
