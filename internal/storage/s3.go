package storage

import (
	"bytes"
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
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/metrics"
)

const (
	backendS3          = "s3"
	maxParallelPresign = 8
)

// S3Config holds the settings of an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store stores assets in an S3-compatible bucket and signs them with
// presigned GET URLs.
type S3Store struct {
	bucket    string
	client    s3API
	presigner s3Presigner
	log       zerolog.Logger
	disabled  bool
}

// NewS3Store builds a store from cfg. Missing bucket or credentials yield a
// disabled store that fails every call with ErrStorageDisabled.
func NewS3Store(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Store, error) {
	logger := log.With().Str("component", "s3-storage").Logger()
	store := &S3Store{bucket: strings.TrimSpace(cfg.Bucket), log: logger}

	accessKey := strings.TrimSpace(cfg.AccessKeyID)
	secretKey := strings.TrimSpace(cfg.SecretAccessKey)
	if store.bucket == "" || accessKey == "" || secretKey == "" {
		logger.Warn().Msg("S3_BUCKET or credentials are not set; storage is disabled until configured")
		store.disabled = true
		return store, nil
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	store.client = client
	store.presigner = s3.NewPresignClient(client)
	return store, nil
}

func (s *S3Store) ensureEnabled() error {
	if s == nil || s.disabled {
		return ErrStorageDisabled
	}
	return nil
}

// Upload puts data at key and returns the key as reference.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.ensureEnabled(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		metrics.RecordStorage(backendS3, "upload", "error")
		return "", fmt.Errorf("storage: put object %s: %w", cleanKey, err)
	}
	metrics.RecordStorage(backendS3, "upload", "success")
	return cleanKey, nil
}

// SignedURL presigns a GET for ref. S3 cannot transform images, so any
// transform is dropped.
func (s *S3Store) SignedURL(ctx context.Context, ref string, ttl time.Duration, transform *Transform) (string, error) {
	if err := s.ensureEnabled(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("storage: ttl must be positive")
	}
	if !transform.IsZero() {
		s.log.Debug().Str("ref", ref).Str("transform", transform.String()).Msg("s3 ignores transform descriptors")
	}
	key, err := sanitizeKey(ref)
	if err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		metrics.RecordStorage(backendS3, "sign", "error")
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	metrics.RecordStorage(backendS3, "sign", "success")
	return req.URL, nil
}

// SignedURLs presigns refs concurrently and returns them in input order.
func (s *S3Store) SignedURLs(ctx context.Context, refs []string, ttl time.Duration) ([]string, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	out := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPresign)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			u, err := s.SignedURL(gctx, ref, ttl, nil)
			if err != nil {
				return err
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
