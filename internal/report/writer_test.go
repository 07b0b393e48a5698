package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
)

// createTestReport creates a finished report with sample data for testing.
func createTestReport() *model.RunReport {
	report := model.NewRunReport("https://example.com/", 4)
	report.PagesFetched = 12
	report.PagesSaved = 11
	report.AddFetchError(model.NewFetchError("https://example.com/missing",
		&model.StatusError{StatusCode: 404, Status: "404 Not Found"}))
	report.AddFetchError(model.NewFetchError("https://example.com/reset",
		errors.New("connection reset by peer")))
	report.AddPersistError("https://example.com/big", errors.New("disk full"))
	report.Finish(false)
	return report
}

func createTestRuns() []database.RunRecord {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []database.RunRecord{
		{
			ID:           "0f8fad5b-d9cb-469f-a165-70867728950e",
			Seed:         "https://example.com/",
			Concurrency:  4,
			StartedAt:    started,
			FinishedAt:   started.Add(time.Minute),
			Status:       "complete",
			PagesFetched: 40,
			PagesSaved:   40,
		},
		{
			ID:          "7c9e6679-7425-40de-944b-e07fc1f90ae7",
			Seed:        "https://example.org/",
			Concurrency: 1,
			StartedAt:   started.Add(-time.Hour),
			Status:      "running",
		},
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"GOWGET CRAWL REPORT",
			report.ID,
			"https://example.com/",
			"Pages fetched:  12",
			"Pages saved:    11",
			"Failures:       3",
			"COMPLETED WITH ERRORS",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("lists failures with status codes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[404] https://example.com/missing") {
			t.Error("expected 404 failure")
		}
		if !strings.Contains(output, "[x] https://example.com/reset") {
			t.Error("expected transport failure")
		}
		if !strings.Contains(output, "PERSIST FAILURES") {
			t.Error("expected persist failures section")
		}
		if strings.Contains(output, "connection reset by peer") {
			t.Error("messages should only be shown in verbose mode")
		}
	})

	t.Run("verbose shows messages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "connection reset by peer") {
			t.Error("expected failure message in verbose mode")
		}
	})

	t.Run("truncates long failure lists", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com/", 1)
		for i := range defaultFailureLimit + 5 {
			report.AddFetchError(model.NewFetchError(fmt.Sprintf("https://example.com/%d", i), errors.New("boom")))
		}
		report.Finish(false)

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "... and 5 more") {
			t.Error("expected truncation notice")
		}
	})

	t.Run("empty sections", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com/", 1)
		report.Finish(false)

		var hidden, shown bytes.Buffer
		if _, err := NewSimpleWriter(&hidden).Write(report); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSimpleWriter(&shown, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatal(err)
		}

		if strings.Contains(hidden.String(), "FETCH FAILURES") {
			t.Error("empty section should be hidden by default")
		}
		if !strings.Contains(shown.String(), "FETCH FAILURES") || !strings.Contains(shown.String(), "None") {
			t.Error("empty section should be shown with WithShowEmpty")
		}
	})

	t.Run("history table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[1], "0f8fad5b ") {
			t.Errorf("expected short ID, got %q", lines[1])
		}
		if !strings.Contains(lines[2], "running") {
			t.Errorf("expected running status, got %q", lines[2])
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteHistory(nil); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "No crawl history") {
			t.Error("expected empty-history message")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		if _, err := NewJSONWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.RunReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.ID != report.ID || got.PagesFetched != 12 || len(got.Failures) != 2 {
			t.Errorf("unexpected report %+v", got)
		}
		if got.Failures[0].StatusCode != 404 {
			t.Errorf("expected status 404, got %d", got.Failures[0].StatusCode)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("compact output should be a single line")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"seed\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("version wrapper", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("1.2.3")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "1.2.3" {
			t.Errorf("unexpected version %q", got.Version)
		}
		if got.Status != "completed with errors" {
			t.Errorf("unexpected status %q", got.Status)
		}
		if got.Report == nil || got.Report.Seed != "https://example.com/" {
			t.Error("expected wrapped report")
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if _, ok := got[0]["finished_at"]; !ok {
			t.Error("finished run should have finished_at")
		}
		if _, ok := got[1]["finished_at"]; ok {
			t.Error("running run should omit finished_at")
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# gowget Crawl Report",
			"## Summary",
			"## Fetch Failures",
			"## Persist Failures",
			"https://example.com/missing",
			"```mermaid",
			"[!CAUTION]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("clean run", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com/", 1)
		report.PagesFetched = 3
		report.PagesSaved = 3
		report.Finish(false)

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "## Fetch Failures") {
			t.Error("clean run should have no failure sections")
		}
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected tip alert")
		}
	})

	t.Run("stopped run", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://example.com/", 1)
		report.Finish(true)

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected warning alert")
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "# gowget Crawl History") || !strings.Contains(output, "`7c9e6679`") {
			t.Errorf("unexpected history output:\n%s", output)
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*model.RunReport) (int, error) {
	return 0, errors.New("write failed")
}

func (failingWriter) WriteHistory([]database.RunRecord) (int, error) {
	return 0, errors.New("write failed")
}

// TestMultiWriter tests writing to multiple writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

		n, err := mw.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}

		if _, err := mw.WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))

		if _, err := mw.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if _, err := mw.WriteHistory(nil); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("writers after the failing one should not run")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}

	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
