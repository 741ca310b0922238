// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/hookline/hookline/internal/config"
	"github.com/hookline/hookline/internal/models"
)

// StorageService handles object storage operations (S3-compatible). It is
// used to archive aged delivery ledger records before they are pruned
// from the database.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.ArchiveEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible storage (Tigris, MinIO, etc.)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Bucket returns the configured bucket name.
func (s *StorageService) Bucket() string {
	return s.bucket
}

// DeliveryArchive is one batch of delivery records written to storage.
type DeliveryArchive struct {
	ArchivedAt time.Time          `json:"archived_at"`
	Cutoff     time.Time          `json:"cutoff"`
	Sequence   int                `json:"sequence"`
	Count      int                `json:"count"`
	Deliveries []*models.Delivery `json:"deliveries"`
}

// StoreDeliveryArchive writes a batch of delivery records as a single
// JSON object under the deliveries/ prefix. The returned key identifies
// the stored object.
func (s *StorageService) StoreDeliveryArchive(ctx context.Context, archive *DeliveryArchive) (string, error) {
	if !s.enabled {
		return "", nil
	}
	if archive == nil || len(archive.Deliveries) == 0 {
		return "", nil
	}

	archive.Count = len(archive.Deliveries)
	data, err := json.Marshal(archive)
	if err != nil {
		return "", fmt.Errorf("failed to marshal delivery archive: %w", err)
	}

	key := fmt.Sprintf("deliveries/%s-%03d.json", archive.ArchivedAt.UTC().Format("20060102-150405"), archive.Sequence)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store delivery archive: %w", err)
	}

	s.logger.Info("stored delivery archive",
		"key", key,
		"deliveries", archive.Count,
		"size_bytes", len(data),
	)
	return key, nil
}

// GetDeliveryArchive retrieves an archive batch from storage by key.
func (s *StorageService) GetDeliveryArchive(ctx context.Context, key string) (*DeliveryArchive, error) {
	if !s.enabled {
		return nil, fmt.Errorf("storage is not enabled")
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery archive: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read delivery archive: %w", err)
	}

	var archive DeliveryArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery archive: %w", err)
	}

	return &archive, nil
}

// DeleteOldArchives deletes archive objects older than the specified age.
// Returns the number of deleted objects.
func (s *StorageService) DeleteOldArchives(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String("deliveries/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list archive objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    obj.Key,
				})
				if err != nil {
					s.logger.Warn("failed to delete old archive object",
						"key", *obj.Key,
						"error", err,
					)
					continue
				}
				deleted++
			}
		}
	}

	s.logger.Info("archive cleanup completed",
		"deleted_count", deleted,
		"max_age", maxAge.String(),
	)
	return deleted, nil
}
