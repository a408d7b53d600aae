package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"StemDeck/config"
	"StemDeck/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultSignedURLExpiry is how long a direct signed URL stays valid.
const DefaultSignedURLExpiry = 15 * time.Minute

// MinioSigner signs GET URLs for stem objects directly against the object
// store, for deployments that hand clients read-only bucket credentials
// instead of serving /presigned-url.
type MinioSigner struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// MinioConfigured reports whether direct signing is enabled.
func MinioConfigured(cfg *config.Config) bool {
	return cfg.MinioEndpoint != "" && cfg.MinioAccessKey != "" && cfg.MinioSecretKey != ""
}

// NewMinioSigner 初始化 MinIO 客户端
func NewMinioSigner(cfg *config.Config) (*MinioSigner, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	logger.Info("MinIO signer ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	return &MinioSigner{client: client, bucket: cfg.MinioBucket, expiry: DefaultSignedURLExpiry}, nil
}

// ObjectKey is the bucket layout of split stems: songs/{owner}/{song}/{file}.
func ObjectKey(ownerID, songID, filename string) string {
	return path.Join("songs", ownerID, songID, path.Base(filename))
}

// SignedURL returns a short-lived GET URL for one stem file.
func (s *MinioSigner) SignedURL(ctx context.Context, ownerID, songID, filename string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", path.Base(filename)))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, ObjectKey(ownerID, songID, filename), s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign stem URL: %w", err)
	}
	return u.String(), nil
}
