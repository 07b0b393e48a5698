package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/gowget/internal/model"
)

// SeedHarvester crawls one seed. *Harvester implements it.
type SeedHarvester interface {
	Harvest(ctx context.Context, seed string) (*model.RunReport, error)
}

// BatchProcessor crawls several seeds concurrently. Each seed is an
// independent crawl with its own visited set; the processor only bounds
// how many run at once.
type BatchProcessor struct {
	harvester SeedHarvester

	// concurrency is the maximum number of crawls running at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(harvester SeedHarvester, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		harvester:   harvester,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatchWithCallback crawls every seed and calls callback with each
// finished report and the seed's index. The callback is called from the
// goroutine that ran the crawl, so it must be safe for concurrent use.
// Seeds whose crawl could not start (history error, or ctx cancelled
// before their turn) get no callback. The error is ctx's error when the
// batch was cancelled.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(report *model.RunReport, index int),
) error {
	bp.logger.Info("starting batch",
		"seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			report, err := bp.harvester.Harvest(ctx, seed)
			if err != nil {
				// One seed's history failure does not stop the others.
				bp.logger.Warn("crawl failed",
					"seed", seed,
					"error", err,
				)
			}
			if report != nil {
				callback(report, i)
			}

			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return err
}
