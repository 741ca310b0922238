// Package service contains the business logic layer.
package service

import (
	"fmt"
	"log/slog"

	"github.com/hookline/hookline/internal/config"
	"github.com/hookline/hookline/internal/crypto"
	"github.com/hookline/hookline/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Registry   *RegistryService
	Router     *Router
	Delivery   *DeliveryService
	Scheduler  *RetryScheduler
	Handlers   *HandlerRegistry
	Dispatcher *Dispatcher
	Storage    *StorageService
	Cleanup    *CleanupService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	// Encryptor first - webhook secrets never touch the database in plaintext
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	router := NewRouter(repos.Webhook, logger)
	registrySvc := NewRegistryService(repos.Webhook, repos.Delivery, encryptor, router, logger)
	deliverySvc := NewDeliveryService(repos.Delivery, encryptor, cfg.DeliveryTimeout, cfg.UserAgent, logger)
	scheduler := NewRetryScheduler(repos.Retry, repos.Webhook, deliverySvc, cfg.MaxRetries, cfg.RetryBaseDelay, logger)
	handlers := NewHandlerRegistry(logger)
	dispatcher := NewDispatcher(router, deliverySvc, scheduler, handlers, int64(cfg.MaxConcurrency), logger)
	cleanupSvc := NewCleanupService(repos.Delivery, storageSvc, logger)

	return &Services{
		Registry:   registrySvc,
		Router:     router,
		Delivery:   deliverySvc,
		Scheduler:  scheduler,
		Handlers:   handlers,
		Dispatcher: dispatcher,
		Storage:    storageSvc,
		Cleanup:    cleanupSvc,
	}, nil
}
