package model

import (
	"time"

	"github.com/google/uuid"
)

// Failure is the serializable form of a per-URL error kept in a RunReport.
type Failure struct {
	// URL is the URL that failed.
	URL string `json:"url"`

	// StatusCode is the HTTP status for non-2xx responses, 0 otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the error text.
	Message string `json:"message"`

	// Time is when the failure happened.
	Time time.Time `json:"time"`
}

// RunReport summarizes one crawl run from a single seed.
type RunReport struct {
	// ID uniquely identifies the run in the crawl history.
	ID string `json:"id"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Concurrency is the concurrency limit the run used.
	Concurrency int `json:"concurrency"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PagesFetched counts pages received from the crawler.
	PagesFetched int `json:"pages_fetched"`

	// PagesSaved counts pages the consumer pipeline handled without error.
	PagesSaved int `json:"pages_saved"`

	// Failures holds fetch failures reported by the crawler.
	Failures []Failure `json:"failures,omitempty"`

	// PersistFailures holds pages that were fetched but could not be stored.
	PersistFailures []Failure `json:"persist_failures,omitempty"`

	// Stopped is true when the run was cancelled before reaching quiescence.
	Stopped bool `json:"stopped"`
}

// NewRunReport creates a report for a run starting now.
func NewRunReport(seed string, concurrency int) *RunReport {
	return &RunReport{
		ID:              uuid.NewString(),
		Seed:            seed,
		Concurrency:     concurrency,
		StartedAt:       time.Now(),
		Failures:        make([]Failure, 0),
		PersistFailures: make([]Failure, 0),
	}
}

// AddFetchError records a crawler failure.
func (r *RunReport) AddFetchError(fe *FetchError) {
	r.Failures = append(r.Failures, Failure{
		URL:        fe.URL,
		StatusCode: fe.StatusCode(),
		Message:    fe.Err.Error(),
		Time:       fe.Time,
	})
}

// AddPersistError records a page that the pipeline failed to handle.
func (r *RunReport) AddPersistError(url string, err error) {
	r.PersistFailures = append(r.PersistFailures, Failure{
		URL:     url,
		Message: err.Error(),
		Time:    time.Now(),
	})
}

// Finish stamps the end time.
func (r *RunReport) Finish(stopped bool) {
	r.FinishedAt = time.Now()
	r.Stopped = stopped
}

// Duration returns how long the run took, or 0 if it has not finished.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasFailures reports whether any fetch or persist failure was recorded.
func (r *RunReport) HasFailures() bool {
	return len(r.Failures) > 0 || len(r.PersistFailures) > 0
}

// Status returns a one-word status for display.
func (r *RunReport) Status() string {
	switch {
	case r.Stopped:
		return "stopped"
	case r.HasFailures():
		return "completed with errors"
	default:
		return "complete"
	}
}
