package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings of a MinIO (or any S3 compatible) server.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// MinioStore implements MediaStore on top of a MinIO bucket.
// Object keys double as media ids.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects to MinIO and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created media bucket", logger.String("bucket", cfg.Bucket))
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = client.EndpointURL().String()
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores the file under a fresh key inside the kind's prefix.
func (s *MinioStore) Upload(ctx context.Context, localPath string, opts UploadOptions) (*UploadResult, error) {
	key := objectKey(opts.Kind, localPath)

	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return nil, apperrors.Upstream("upload media", err)
	}
	logger.Debug("media uploaded to minio",
		logger.String("bucket", s.bucket),
		logger.String("key", key),
		logger.Int64("size", info.Size))

	return &UploadResult{URL: objectURL(s.publicURL, s.bucket, key), ID: key}, nil
}

// Destroy removes the object. Removing a missing key is not an error for S3.
func (s *MinioStore) Destroy(ctx context.Context, id string, _ DestroyOptions) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.Upstream("destroy media", err)
	}
	return nil
}

func objectKey(kind ResourceKind, localPath string) string {
	if kind == "" {
		kind = ResourceVideo
	}
	return path.Join(string(kind), uuid.NewString()+strings.ToLower(filepath.Ext(localPath)))
}

func objectURL(base, bucket, key string) string {
	u := strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket)
	for _, seg := range strings.Split(key, "/") {
		u += "/" + url.PathEscape(seg)
	}
	return u
}
