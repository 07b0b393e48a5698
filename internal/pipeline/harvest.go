package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/gowget/internal/crawler"
	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
)

// Harvester runs one crawl per seed and drains it through a Pipeline.
type Harvester struct {
	fetcher     crawler.Fetcher
	crawlerOpts []crawler.Option
	newPipeline func(runID string) *Pipeline
	history     *database.CrawlDB
	logger      *slog.Logger
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithCrawlerOptions sets the options of the crawler built for each run.
// An error handler set here is replaced by the Harvester's own.
func WithCrawlerOptions(opts ...crawler.Option) HarvesterOption {
	return func(h *Harvester) {
		h.crawlerOpts = append(h.crawlerOpts, opts...)
	}
}

// WithPipelineFactory sets the function that builds the pipeline for a
// run. It is called once per Harvest with the new run's ID.
func WithPipelineFactory(fn func(runID string) *Pipeline) HarvesterOption {
	return func(h *Harvester) {
		if fn != nil {
			h.newPipeline = fn
		}
	}
}

// WithHistory records every run and its failures in db.
func WithHistory(db *database.CrawlDB) HarvesterOption {
	return func(h *Harvester) {
		h.history = db
	}
}

// WithHarvestLogger sets the logger.
func WithHarvestLogger(logger *slog.Logger) HarvesterOption {
	return func(h *Harvester) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHarvester creates a Harvester that fetches with fetcher.
func NewHarvester(fetcher crawler.Fetcher, opts ...HarvesterOption) *Harvester {
	h := &Harvester{
		fetcher: fetcher,
		logger:  slog.Default(),
		newPipeline: func(string) *Pipeline {
			return New()
		},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Harvest crawls from seed until the crawl ends or ctx is cancelled, and
// returns the run's report. Pages already received when ctx is cancelled
// are still handled by the pipeline. The returned error is non-nil only
// when the crawl history could not be written.
func (h *Harvester) Harvest(ctx context.Context, seed string) (*model.RunReport, error) {
	// The crawler's error handler runs on its scheduler goroutine while this
	// goroutine handles pages, so the report is shared.
	var mu sync.Mutex

	// History writes must survive cancellation so a stopped run is still
	// closed out in the database.
	persistCtx := context.WithoutCancel(ctx)

	var report *model.RunReport
	onError := func(fe *model.FetchError) {
		mu.Lock()
		report.AddFetchError(fe)
		failure := report.Failures[len(report.Failures)-1]
		mu.Unlock()

		h.logger.Warn("fetch failed", "url", fe.URL, "error", fe.Err)
		h.record(persistCtx, report.ID, database.FailureKindFetch, failure)
	}

	opts := append(append([]crawler.Option{}, h.crawlerOpts...),
		crawler.WithErrorHandler(onError),
		crawler.WithLogger(h.logger),
	)
	c := crawler.New(h.fetcher, opts...)

	report = model.NewRunReport(seed, c.Concurrency())
	if h.history != nil {
		if err := h.history.BeginRun(persistCtx, report); err != nil {
			return nil, fmt.Errorf("failed to record run start: %w", err)
		}
	}
	p := h.newPipeline(report.ID)

	h.logger.Info("crawl started",
		"run", report.ID,
		"seed", seed,
		"concurrency", c.Concurrency(),
	)

	for page := range c.Crawl(ctx, seed) {
		mu.Lock()
		report.PagesFetched++
		mu.Unlock()

		if err := p.Execute(persistCtx, page); err != nil {
			mu.Lock()
			report.AddPersistError(page.URL, err)
			failure := report.PersistFailures[len(report.PersistFailures)-1]
			mu.Unlock()

			h.record(persistCtx, report.ID, database.FailureKindPersist, failure)
			continue
		}

		mu.Lock()
		report.PagesSaved++
		mu.Unlock()
	}

	// The page channel is closed, so the error handler has returned for
	// the last time.
	report.Finish(ctx.Err() != nil)

	h.logger.Info("crawl finished",
		"run", report.ID,
		"status", report.Status(),
		"fetched", report.PagesFetched,
		"saved", report.PagesSaved,
		"failures", len(report.Failures),
		"duration", report.Duration(),
	)

	if h.history != nil {
		if err := h.history.FinishRun(persistCtx, report); err != nil {
			return report, fmt.Errorf("failed to record run end: %w", err)
		}
	}

	return report, nil
}

func (h *Harvester) record(ctx context.Context, runID, kind string, failure model.Failure) {
	if h.history == nil {
		return
	}
	if err := h.history.RecordFailure(ctx, runID, kind, failure); err != nil {
		h.logger.Error("failed to record failure", "url", failure.URL, "error", err)
	}
}
