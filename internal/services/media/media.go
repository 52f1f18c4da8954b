package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/motorscan/carhealth/internal/config"
	mediatypes "github.com/motorscan/carhealth/internal/types/media"
)

// Service wraps the MinIO client for car media blobs: presigned upload
// destinations for the direct path, server-side puts for the proxy
// path, and public URL construction.
type Service struct {
	client     *minio.Client
	bucketName string
	config     *config.Media
	useSSL     bool
}

// NewService creates a new blob service instance
func NewService(cfg *config.Config) (*Service, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	service := &Service{
		client:     client,
		bucketName: cfg.MinIO.BucketName,
		config:     &cfg.Media,
		useSSL:     cfg.MinIO.UseSSL,
	}

	if err := service.ensureBucket(); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return service, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Service) ensureBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// GenerateStorageKey creates a unique object key for one car media
// file, grouped by car and kind.
func (s *Service) GenerateStorageKey(carID string, mediaType mediatypes.MediaType, fileName string) string {
	ext := path.Ext(fileName)
	unique := uuid.New().String() + ext
	return fmt.Sprintf("cars/%s/%ss/%s", carID, mediaType, unique)
}

// PresignedUploadURL creates the direct-transfer destination for a
// storage key. The query string carries the transfer authorization;
// clients strip it to obtain the durable URL.
func (s *Service) PresignedUploadURL(ctx context.Context, storageKey string) (string, int, error) {
	expiry := time.Duration(s.config.PresignedURLTTL) * time.Second

	presignedURL, err := s.client.PresignedPutObject(ctx, s.bucketName, storageKey, expiry)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedURL.String(), s.config.PresignedURLTTL, nil
}

// PutObject streams file bytes into storage server-side; the proxy
// upload path lands here.
func (s *Service) PutObject(ctx context.Context, storageKey string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, storageKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}

// MediaURL returns the public URL for accessing a stored object.
func (s *Service) MediaURL(storageKey string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	endpoint := strings.TrimPrefix(s.client.EndpointURL().String(), scheme+"://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.bucketName, storageKey)
}

// DeleteObject removes an object from storage
func (s *Service) DeleteObject(ctx context.Context, storageKey string) error {
	return s.client.RemoveObject(ctx, s.bucketName, storageKey, minio.RemoveObjectOptions{})
}

// ObjectInfo returns information about a stored object
func (s *Service) ObjectInfo(ctx context.Context, storageKey string) (minio.ObjectInfo, error) {
	return s.client.StatObject(ctx, s.bucketName, storageKey, minio.StatObjectOptions{})
}
