package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/gowget/internal/config"
	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/report"
)

// defaultHistoryLimit is the number of runs "history list" shows.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past crawl runs",
		Long: `History reads the crawl history that "gowget crawl" records.

Examples:
  # The 20 most recent runs
  gowget history list

  # Runs of one seed, as JSON
  gowget history list --seed https://example.com/ --json

  # One run with its failures and pages (an ID prefix is enough)
  gowget history show 0f8fad5b --pages`,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent crawl runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryListCmd,
	}

	cmd.Flags().String("seed", "", "Only list runs of this seed URL")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of runs")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one crawl run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}

	cmd.Flags().Bool("pages", false, "Also list the pages of the run")

	return cmd
}

// openHistory opens the existing history database.
func openHistory(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return nil, fmt.Errorf("no crawl history in %s: run \"gowget crawl\" first", dbDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	seed, err := cmd.Flags().GetString("seed")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if asJSON && asMarkdown {
		return config.ErrConflictingReportFormats
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if seed != "" {
		seed = normalizeSeed(seed)
	}
	runs, err := db.ListRuns(cmd.Context(), seed, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var w report.Writer
	switch {
	case asJSON:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case asMarkdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}

	_, err = w.WriteHistory(runs)
	return err
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	showPages, err := cmd.Flags().GetBool("pages")
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	run, err := db.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	failures, err := db.RunFailures(ctx, run.ID)
	if err != nil {
		return err
	}

	var pages []database.PageRecord
	if showPages {
		if pages, err = db.RunPages(ctx, run.ID); err != nil {
			return err
		}
	}

	writeRun(cmd.OutOrStdout(), run, failures, pages, showPages)
	return nil
}

func writeRun(w io.Writer, run *database.RunRecord, failures []database.FailureRecord, pages []database.PageRecord, showPages bool) {
	fmt.Fprintf(w, "Run:            %s\n", run.ID)
	fmt.Fprintf(w, "Seed:           %s\n", run.Seed)
	fmt.Fprintf(w, "Started:        %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.Finished() {
		fmt.Fprintf(w, "Duration:       %s\n", run.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Concurrency:    %d\n", run.Concurrency)
	fmt.Fprintf(w, "Status:         %s\n", run.Status)
	fmt.Fprintf(w, "Pages fetched:  %d\n", run.PagesFetched)
	fmt.Fprintf(w, "Pages saved:    %d\n", run.PagesSaved)
	fmt.Fprintf(w, "Failures:       %d\n", run.Failures)

	if len(failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, f := range failures {
			status := "-"
			if f.StatusCode != 0 {
				status = fmt.Sprint(f.StatusCode)
			}
			fmt.Fprintf(w, "  %-7s  %3s  %s  %s\n", f.Kind, status, f.URL, f.Message)
		}
	}

	if showPages {
		fmt.Fprintf(w, "\nPages (%d):\n", len(pages))
		for _, p := range pages {
			fmt.Fprintf(w, "  %3d  %8d  %s\n", p.StatusCode, p.Size, p.URL)
		}
	}
}
