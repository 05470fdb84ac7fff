package pipeline

import (
	"context"
	"time"

	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

// Worker polls the advanceable backlog on a ticker and pushes documents
// through the driver. Multiple workers across processes coexist safely;
// the lease layer arbitrates.
type Worker struct {
	driver *Driver
	log    *logger.Logger

	concurrency int
	interval    time.Duration
}

func NewWorker(driver *Driver, baseLog *logger.Logger, concurrency int, interval time.Duration) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		driver:      driver,
		log:         baseLog.With("component", "PipelineWorker"),
		concurrency: concurrency,
		interval:    interval,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting pipeline worker pool", "concurrency", w.concurrency, "interval", w.interval)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("Worker pass panic", "worker_id", workerID, "panic", r)
					}
				}()
				if err := w.driver.RunOnce(ctx); err != nil && ctx.Err() == nil {
					w.log.Warn("Worker pass failed", "worker_id", workerID, "error", err)
				}
			}()
		}
	}
}
