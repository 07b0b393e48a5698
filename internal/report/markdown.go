package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeOutcome(md, report)
	w.writeFailures(md, "Fetch Failures", report.Failures)
	w.writeFailures(md, "Persist Failures", report.PersistFailures)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("gowget Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + report.ID + "`"},
			{"Seed", "`" + report.Seed + "`"},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Concurrency", strconv.Itoa(report.Concurrency)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func statusText(report *model.RunReport) string {
	switch {
	case report.Stopped:
		return "⚠️ Stopped (partial results)"
	case report.HasFailures():
		return "❌ Completed with errors"
	default:
		return "✅ Complete"
	}
}

// writeOutcome writes the page counters, a pie chart of saved versus
// failed URLs and an alert.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Pages fetched", strconv.Itoa(report.PagesFetched)},
			{"Pages saved", strconv.Itoa(report.PagesSaved)},
			{"Fetch failures", strconv.Itoa(len(report.Failures))},
			{"Persist failures", strconv.Itoa(len(report.PersistFailures))},
		},
	})
	md.PlainText("")

	if report.HasFailures() {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("URL Outcomes"),
			piechart.WithShowData(true),
		)
		if report.PagesSaved > 0 {
			chart.LabelAndIntValue("Saved", uint64(report.PagesSaved))
		}
		if n := len(report.Failures); n > 0 {
			chart.LabelAndIntValue("Fetch failed", uint64(n))
		}
		if n := len(report.PersistFailures); n > 0 {
			chart.LabelAndIntValue("Persist failed", uint64(n))
		}

		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case report.Stopped:
		md.Warningf("The crawl was stopped before it finished. %d page(s) were saved.", report.PagesSaved)
	case len(report.PersistFailures) > 0:
		md.Cautionf("%d fetched page(s) could not be saved.", len(report.PersistFailures))
	case len(report.Failures) > 0:
		md.Importantf("%d URL(s) could not be fetched.", len(report.Failures))
	case report.PagesFetched == 0:
		md.Note("No page was fetched.")
	default:
		md.Tip("Every reachable page was fetched and saved.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, title string, failures []model.Failure) {
	if len(failures) == 0 {
		return
	}

	md.H2(title)
	md.PlainText("")

	rows := make([][]string, len(failures))
	for i, f := range failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{
			truncateString(f.URL, 80),
			status,
			truncateString(f.Message, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteHistory outputs the run list as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("gowget Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No crawl history.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			"`" + shortID(r.ID) + "`",
			r.StartedAt.Local().Format(timeLayout),
			r.Status,
			strconv.Itoa(r.PagesFetched),
			strconv.Itoa(r.Failures),
			r.Seed,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Status", "Pages", "Failures", "Seed"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [gowget](https://github.com/nao1215/gowget)*")
}
