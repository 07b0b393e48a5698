package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
	"github.com/nao1215/gowget/internal/sink"
)

// SaveStep writes the page body through a sink.Persister, keyed by URL.
type SaveStep struct {
	persister sink.Persister
}

// NewSaveStep creates a SaveStep.
func NewSaveStep(persister sink.Persister) *SaveStep {
	return &SaveStep{persister: persister}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do persists the page.
func (s *SaveStep) Do(_ context.Context, page *model.Page) error {
	return s.persister.Persist(page.URL, page.Body)
}

// RecordStep stores page metadata in the crawl history under one run.
type RecordStep struct {
	db    *database.CrawlDB
	runID string
}

// NewRecordStep creates a RecordStep for the run runID.
func NewRecordStep(db *database.CrawlDB, runID string) *RecordStep {
	return &RecordStep{db: db, runID: runID}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do records the page.
func (s *RecordStep) Do(ctx context.Context, page *model.Page) error {
	return s.db.RecordPage(ctx, s.runID, page)
}

// NewProgressStep returns a step named "progress" that advances bar once
// per page. One bar may be shared by the pipelines of concurrent runs.
func NewProgressStep(bar *progressbar.ProgressBar) StepFunc {
	return StepFunc{
		StepName: "progress",
		Fn: func(context.Context, *model.Page) error {
			return bar.Add(1)
		},
	}
}

// NewProgressBar creates the bar used by NewProgressStep. max is the
// expected number of pages, or -1 when it is unknown (a spinner).
func NewProgressBar(w io.Writer, max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
