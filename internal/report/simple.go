package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
)

// defaultFailureLimit is how many failures SimpleWriter lists per section
// unless verbose.
const defaultFailureLimit = 10

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints failure sections even when they are empty.
	showEmpty bool

	// verbose lists every failure instead of the first few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeFailures(&sb, "FETCH FAILURES", report.Failures)
	w.writeFailures(&sb, "PERSIST FAILURES", report.PersistFailures)
	writeRule(&sb, "=")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("                          GOWGET CRAWL REPORT\n")
	writeRule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Run:            %s\n", report.ID)
	fmt.Fprintf(sb, "Seed:           %s\n", report.Seed)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:       %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Concurrency:    %d\n", report.Concurrency)
	fmt.Fprintf(sb, "Pages fetched:  %d\n", report.PagesFetched)
	fmt.Fprintf(sb, "Pages saved:    %d\n", report.PagesSaved)
	fmt.Fprintf(sb, "Failures:       %d\n", len(report.Failures)+len(report.PersistFailures))
	fmt.Fprintf(sb, "Status:         %s\n", strings.ToUpper(report.Status()))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, title string, failures []model.Failure) {
	if len(failures) == 0 && !w.showEmpty {
		return
	}

	writeRule(sb, "-")
	sb.WriteString(title + "\n")
	writeRule(sb, "-")
	sb.WriteString("\n")

	if len(failures) == 0 {
		sb.WriteString("  None\n\n")
		return
	}

	shown := failures
	if !w.verbose && len(shown) > defaultFailureLimit {
		shown = shown[:defaultFailureLimit]
	}

	for _, f := range shown {
		if f.StatusCode != 0 {
			fmt.Fprintf(sb, "  [%d] %s\n", f.StatusCode, f.URL)
		} else {
			fmt.Fprintf(sb, "  [x] %s\n", f.URL)
		}
		if w.verbose {
			fmt.Fprintf(sb, "      %s\n", f.Message)
		}
	}
	if rest := len(failures) - len(shown); rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use --verbose)\n", rest)
	}
	sb.WriteString("\n")
}

// WriteHistory outputs the run list as an aligned table.
func (w *SimpleWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No crawl history.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-8s  %-23s  %-21s  %6s  %6s  %s\n",
		"ID", "STARTED", "STATUS", "PAGES", "FAILED", "SEED")
	for _, r := range runs {
		fmt.Fprintf(&sb, "%-8s  %-23s  %-21s  %6d  %6d  %s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(timeLayout),
			r.Status,
			r.PagesFetched,
			r.Failures,
			truncateString(r.Seed, 60),
		)
	}

	return w.output.Write([]byte(sb.String()))
}

func writeRule(sb *strings.Builder, char string) {
	sb.WriteString(strings.Repeat(char, 70))
	sb.WriteString("\n")
}
