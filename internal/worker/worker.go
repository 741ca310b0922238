// Package worker runs the background retry pump.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/internal/service"
)

// Worker periodically drains the retry queue, re-delivering failed
// webhooks whose backoff has elapsed.
type Worker struct {
	scheduler    *service.RetryScheduler
	pollInterval time.Duration
	batchSize    int
	stop         chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// New creates a new worker.
func New(scheduler *service.RetryScheduler, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		scheduler:    scheduler,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "retry-worker"),
	}
}

// Start begins processing due retries.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "poll_interval", w.pollInterval.String(), "batch_size", w.batchSize)

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	// Drain anything that came due while the process was down
	w.processDue(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

func (w *Worker) processDue(ctx context.Context) {
	succeeded, err := w.scheduler.ProcessDue(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("retry pass failed", "error", err)
		return
	}
	if succeeded > 0 {
		w.logger.Info("retry pass completed", "succeeded", succeeded)
	}
}
