package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const collectTimeout = 2 * time.Minute

// StaleAnalysisSweeper fails posts whose analysis job was lost, so they do
// not stay analyzing forever
type StaleAnalysisSweeper interface {
	FailStaleAnalyses(ctx context.Context, olderThan time.Duration) (int64, error)
}

// GarbageCollector periodically purges dead-lettered analysis jobs older
// than retention and, when a sweeper is set, fails posts stuck analyzing
type GarbageCollector struct {
	dlqPurger  DLQPurger
	sweeper    StaleAnalysisSweeper
	interval   time.Duration
	retention  time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewGarbageCollector creates a collector running every interval
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{
		dlqPurger: purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// WithSweeper also fails posts that have been analyzing for longer than
// staleAfter without saving progress
func (gc *GarbageCollector) WithSweeper(sweeper StaleAnalysisSweeper, staleAfter time.Duration) *GarbageCollector {
	gc.sweeper = sweeper
	gc.staleAfter = staleAfter
	return gc
}

// Start runs the collection loop until ctx is cancelled
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := gc.collect(ctx); err != nil {
				gc.logger.Error("dlq_gc_failed", zap.Error(err))
			}
		}
	}
}

// collect runs one purge and one sweep. Both run even if the other fails.
func (gc *GarbageCollector) collect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	var errs []error
	if gc.dlqPurger != nil {
		n, err := gc.dlqPurger.PurgeOlderThan(ctx, gc.retention)
		if err != nil {
			errs = append(errs, fmt.Errorf("DLQ purge: %w", err))
		} else if n > 0 {
			gc.logger.Info("dlq_gc_purged",
				zap.Int("messages", n),
				zap.Duration("retention", gc.retention),
			)
		}
	}

	if gc.sweeper != nil && gc.staleAfter > 0 {
		n, err := gc.sweeper.FailStaleAnalyses(ctx, gc.staleAfter)
		if err != nil {
			errs = append(errs, fmt.Errorf("stale analysis sweep: %w", err))
		} else if n > 0 {
			gc.logger.Warn("stale_analyses_failed",
				zap.Int64("posts", n),
				zap.Duration("stale_after", gc.staleAfter),
			)
		}
	}

	return errors.Join(errs...)
}
