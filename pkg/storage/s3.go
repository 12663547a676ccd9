package storage

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/config"
	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/logger"
)

// S3Store implements ObjectStore against S3 and S3-compatible services.
type S3Store struct {
	client *s3.Client
	logger *zap.Logger
}

// NewS3Store builds an S3-backed ObjectStore from the connection config.
// When the config carries static credentials they take precedence over the
// ambient credential chain; a custom endpoint and path-style addressing are
// honored for non-AWS services.
func NewS3Store(ctx context.Context, cfg *config.ConnectionConfig) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.EffectiveRegion()),
	}
	if cfg.Credentials.Static() {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Credentials.AccessKeyID,
				cfg.Credentials.SecretAccessKey,
				cfg.Credentials.SessionToken,
			)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client: client,
		logger: logger.With(zap.String("component", "s3_store")),
	}, nil
}

// NewS3StoreFromClient wraps an existing client, mainly for tests.
func NewS3StoreFromClient(client *s3.Client) *S3Store {
	return &S3Store{
		client: client,
		logger: logger.With(zap.String("component", "s3_store")),
	}
}

// GetObject retrieves one object's byte stream.
func (s *S3Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(err, bucket, key)
	}

	s.logger.Debug("object stream opened",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("content_length", aws.ToInt64(out.ContentLength)))

	return out.Body, nil
}

// ListPage lists one page of keys under the prefix.
func (s *S3Store) ListPage(ctx context.Context, bucket, prefix, continuation string) ([]string, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if continuation != "" {
		input.ContinuationToken = aws.String(continuation)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", mapS3Error(err, bucket, prefix)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}

	next := ""
	if aws.ToBool(out.IsTruncated) {
		next = aws.ToString(out.NextContinuationToken)
	}

	s.logger.Debug("listed object page",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("keys", len(keys)),
		zap.Bool("truncated", next != ""))

	return keys, next, nil
}

// mapS3Error folds the backend's error taxonomy into the connector's:
// missing bucket/object -> not_found, access denied -> permission,
// everything else -> transport.
func mapS3Error(err error, bucket, key string) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if stderrors.As(err, &noKey) || stderrors.As(err, &noBucket) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, "object not found").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return errors.Wrap(err, errors.ErrorTypeNotFound, "object not found").
				WithDetail("bucket", bucket).
				WithDetail("key", key)
		case "AccessDenied", "Forbidden":
			return errors.Wrap(err, errors.ErrorTypePermission, "access denied").
				WithDetail("bucket", bucket).
				WithDetail("key", key)
		}
	}

	return errors.Wrap(err, errors.ErrorTypeTransport, "storage request failed").
		WithDetail("bucket", bucket).
		WithDetail("key", key)
}
