// Package service contains the business logic layer.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/internal/repository"
)

// CleanupService prunes aged delivery ledger records from the database,
// archiving them to object storage first when a bucket is configured.
// Webhook rows are never touched: unregistered webhooks stay as
// deactivated rows so their delivery history remains attributable.
type CleanupService struct {
	deliveryRepo repository.DeliveryRepository
	storageSvc   *StorageService
	logger       *slog.Logger
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(
	deliveryRepo repository.DeliveryRepository,
	storageSvc *StorageService,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		deliveryRepo: deliveryRepo,
		storageSvc:   storageSvc,
		logger:       logger.With("component", "cleanup"),
	}
}

// archiveBatchSize bounds how many ledger rows go into one archive object.
const archiveBatchSize = 1000

// CleanupResult contains the results of a cleanup operation.
type CleanupResult struct {
	DeliveriesArchived int
	DeliveriesDeleted  int
	ArchiveKeys        []string
	Errors             []error
}

// CleanupOldDeliveries removes ledger records older than maxAge. When
// storage is enabled the records are archived in batches before
// deletion; an archive failure aborts the prune so no record is lost.
func (s *CleanupService) CleanupOldDeliveries(ctx context.Context, maxAge time.Duration) (*CleanupResult, error) {
	result := &CleanupResult{}
	cutoff := time.Now().UTC().Add(-maxAge)
	startedAt := time.Now().UTC()

	s.logger.Info("starting delivery cleanup",
		"max_age", maxAge.String(),
		"cutoff", cutoff.Format(time.RFC3339),
	)

	archiving := s.storageSvc != nil && s.storageSvc.IsEnabled()

	if !archiving {
		deleted, err := s.deliveryRepo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Error("failed to delete old deliveries", "error", err)
			result.Errors = append(result.Errors, err)
			return result, err
		}
		result.DeliveriesDeleted = deleted
		s.logger.Info("cleanup completed", "deliveries_deleted", deleted)
		return result, nil
	}

	for seq := 0; ; seq++ {
		batch, err := s.deliveryRepo.GetOlderThan(ctx, cutoff, archiveBatchSize)
		if err != nil {
			s.logger.Error("failed to load aged deliveries", "error", err)
			result.Errors = append(result.Errors, err)
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		key, err := s.storageSvc.StoreDeliveryArchive(ctx, &DeliveryArchive{
			ArchivedAt: startedAt,
			Cutoff:     cutoff,
			Sequence:   seq,
			Deliveries: batch,
		})
		if err != nil {
			s.logger.Error("failed to archive aged deliveries", "error", err)
			result.Errors = append(result.Errors, err)
			return result, err
		}
		result.DeliveriesArchived += len(batch)
		result.ArchiveKeys = append(result.ArchiveKeys, key)

		// Only rows strictly older than the last archived row are pruned
		// for a partial batch; rows sharing its timestamp may be archived
		// again next round, which duplicates but never loses them.
		boundary := cutoff
		if len(batch) == archiveBatchSize {
			boundary = batch[len(batch)-1].DeliveredAt
		}
		deleted, err := s.deliveryRepo.DeleteOlderThan(ctx, boundary)
		if err != nil {
			s.logger.Error("failed to delete old deliveries", "error", err)
			result.Errors = append(result.Errors, err)
			return result, err
		}
		result.DeliveriesDeleted += deleted

		if len(batch) < archiveBatchSize {
			break
		}
		if deleted == 0 {
			// A full batch with one shared timestamp cannot advance; leave
			// the remainder for the next scheduled run.
			s.logger.Warn("cleanup made no progress, deferring remainder",
				"boundary", boundary.Format(time.RFC3339))
			break
		}
	}

	s.logger.Info("cleanup completed",
		"deliveries_archived", result.DeliveriesArchived,
		"deliveries_deleted", result.DeliveriesDeleted,
		"archive_objects", len(result.ArchiveKeys),
		"errors", len(result.Errors),
	)
	return result, nil
}

// RunScheduledCleanup runs the cleanup task as a background goroutine.
// It runs immediately on start and then at the specified interval.
func (s *CleanupService) RunScheduledCleanup(ctx context.Context, maxAge, interval time.Duration) {
	s.logger.Info("starting scheduled cleanup",
		"max_age", maxAge.String(),
		"interval", interval.String(),
	)

	if _, err := s.CleanupOldDeliveries(ctx, maxAge); err != nil {
		s.logger.Error("initial cleanup failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduled cleanup stopped")
			return
		case <-ticker.C:
			if _, err := s.CleanupOldDeliveries(ctx, maxAge); err != nil {
				s.logger.Error("scheduled cleanup failed", "error", err)
			}
		}
	}
}
