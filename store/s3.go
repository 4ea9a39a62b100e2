package store

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	log "github.com/sirupsen/logrus"
)

// deleteBatchSize is the DeleteObjects API limit.
const deleteBatchSize = 1000

// SourceConfig configures the source store handle. All values are
// explicit; nothing is read from shared config files, profiles, or the
// process environment.
type SourceConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// DestinationConfig configures the destination store handle. Credentials
// are resolved from the named profile's shared configuration.
type DestinationConfig struct {
	Bucket  string
	Region  string
	Profile string
}

// S3Store implements Store over an S3-compatible API.
type S3Store struct {
	client    *s3.Client
	bucket    string
	accountID string
	logger    log.FieldLogger
}

// NewSource creates the source handle from explicit static configuration.
// The AWS config is constructed directly rather than through the default
// loader, so no environment variable or shared file can redirect it.
func NewSource(cfg SourceConfig, logger log.FieldLogger) *S3Store {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.WithField("store", "source"),
	}
}

// NewDestination creates the destination handle from profile-resolved
// credentials and verifies the resolved identity with one STS
// GetCallerIdentity call. A verification failure is returned before any
// data movement can start.
func NewDestination(ctx context.Context, cfg DestinationConfig, logger log.FieldLogger) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ident, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to verify destination identity: %w", err)
	}
	accountID := aws.ToString(ident.Account)

	logger.WithFields(log.Fields{
		"account": accountID,
		"profile": cfg.Profile,
		"region":  region,
	}).Info("destination store verified")

	return &S3Store{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.Bucket,
		accountID: accountID,
		logger:    logger.WithField("store", "destination"),
	}, nil
}

// Bucket returns the bucket name this handle is bound to.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// AccountID returns the account identity verified at construction. Empty
// for source handles.
func (s *S3Store) AccountID() string {
	return s.accountID
}

// List returns every object key under the prefix mapped to its size.
func (s *S3Store) List(ctx context.Context, prefix string) (map[string]int64, error) {
	objects := make(map[string]int64)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &OpError{Op: "list", Bucket: s.bucket, Key: prefix, Cause: err}
		}
		for _, obj := range page.Contents {
			objects[aws.ToString(obj.Key)] = aws.ToInt64(obj.Size)
		}
	}

	return objects, nil
}

// Get opens an object for reading.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, &OpError{Op: "get", Bucket: s.bucket, Key: key, Cause: err}
	}
	return resp.Body, aws.ToInt64(resp.ContentLength), nil
}

// Put writes an object of the given size.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return &OpError{Op: "put", Bucket: s.bucket, Key: key, Cause: err}
	}
	return nil
}

// Delete removes the given objects in batches of up to 1000 keys.
func (s *S3Store) Delete(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		resp, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return &OpError{Op: "delete", Bucket: s.bucket, Cause: err}
		}
		for _, derr := range resp.Errors {
			return &OpError{
				Op:     "delete",
				Bucket: s.bucket,
				Key:    aws.ToString(derr.Key),
				Cause:  fmt.Errorf("%s: %s", aws.ToString(derr.Code), aws.ToString(derr.Message)),
			}
		}
		s.logger.WithField("count", end-start).Debug("deleted object batch")
	}
	return nil
}
