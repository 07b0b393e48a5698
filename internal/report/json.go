package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version, when set, wraps run reports in a JSONReport.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps each run report with the given gowget version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps a run report with output metadata.
type JSONReport struct {
	// Version is the gowget version that produced the report.
	Version string `json:"version"`

	// DurationSeconds is the run's wall time.
	DurationSeconds float64 `json:"duration_seconds"`

	// Status is the run's one-word status.
	Status string `json:"status"`

	Report *model.RunReport `json:"report"`
}

// Write outputs the run report in JSON format.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	if w.version == "" {
		return w.writeJSON(report)
	}
	return w.writeJSON(&JSONReport{
		Version:         w.version,
		DurationSeconds: report.Duration().Seconds(),
		Status:          report.Status(),
		Report:          report,
	})
}

// historyEntry is the JSON form of a database.RunRecord.
type historyEntry struct {
	ID           string     `json:"id"`
	Seed         string     `json:"seed"`
	Concurrency  int        `json:"concurrency"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	PagesFetched int        `json:"pages_fetched"`
	PagesSaved   int        `json:"pages_saved"`
	Failures     int        `json:"failures"`
}

// WriteHistory outputs the run list as a JSON array.
func (w *JSONWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	entries := make([]historyEntry, len(runs))
	for i, r := range runs {
		entries[i] = historyEntry{
			ID:           r.ID,
			Seed:         r.Seed,
			Concurrency:  r.Concurrency,
			StartedAt:    r.StartedAt,
			Status:       r.Status,
			PagesFetched: r.PagesFetched,
			PagesSaved:   r.PagesSaved,
			Failures:     r.Failures,
		}
		if r.Finished() {
			finished := r.FinishedAt
			entries[i].FinishedAt = &finished
		}
	}
	return w.writeJSON(entries)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')

	return w.output.Write(data)
}
