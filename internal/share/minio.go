package share

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
)

const DefaultLinkExpiry = 24 * time.Hour

// MinioConfig locates the bucket reports are uploaded to.
type MinioConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Region    string        `mapstructure:"region"`
	Bucket    string        `mapstructure:"bucket"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	Prefix    string        `mapstructure:"prefix"`
	Expiry    time.Duration `mapstructure:"expiry"`
}

// Enabled reports whether enough is configured to reach a bucket.
func (c MinioConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// MinioSharer uploads artifacts to an S3-compatible bucket and returns a
// presigned GET link.
type MinioSharer struct {
	client *minio.Client
	cfg    MinioConfig
	logger logging.Logger

	// bucketMu guards bucketReady, which is set only once the bucket is known
	// to exist. Failed checks are retried on the next Share.
	bucketMu    sync.Mutex
	bucketReady bool
}

var _ Sharer = (*MinioSharer)(nil)

// NewMinioSharer creates the client. No request is made until the first Share.
func NewMinioSharer(cfg MinioConfig, logger logging.Logger) (*MinioSharer, error) {
	if logger == nil {
		return nil, errors.New("share: nil logger provided")
	}
	if !cfg.Enabled() {
		return nil, errors.New("share: minio endpoint and bucket are required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultLinkExpiry
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioSharer{
		client: cli,
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "share.minio"}),
	}, nil
}

// ensureBucket creates the bucket if it does not exist yet.
func (s *MinioSharer) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return err
		}
	}
	s.bucketReady = true
	return nil
}

func (s *MinioSharer) Share(ctx context.Context, art report.Artifact) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		s.logger.Warn("bucket unavailable", logging.Field{Key: "bucket", Value: s.cfg.Bucket}, logging.Err(err))
		return "", model.NewScanError(model.KindRender, "share bucket is unavailable", err)
	}

	key := path.Join(s.cfg.Prefix, filepath.Base(art.Path))
	contentType := art.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, art.Path, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		s.logger.Warn("upload failed", logging.Field{Key: "key", Value: key}, logging.Err(err))
		return "", model.NewScanError(model.KindRender, "failed to upload report", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, key, s.cfg.Expiry, nil)
	if err != nil {
		return "", model.NewScanError(model.KindRender, "failed to sign report link", err)
	}
	s.logger.Info("shared report", logging.Field{Key: "key", Value: key}, logging.Field{Key: "expiry", Value: s.cfg.Expiry.String()})
	return u.String(), nil
}
