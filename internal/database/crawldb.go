package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/gowget/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "gowget.db"

// Failure kinds stored in the failures table.
const (
	FailureKindFetch   = "fetch"
	FailureKindPersist = "persist"
)

// statusRunning marks a run that has begun but not finished.
const statusRunning = "running"

var (
	// ErrDatabaseNotFound is returned by Open when the database file does
	// not exist and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRunNotFound is returned when no run matches the given ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)

// CrawlDB provides SQLite-based storage for the crawl history.
type CrawlDB struct {
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// Otherwise a missing database is reported as ErrDatabaseNotFound.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		concurrency INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		pages_saved INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		stopped INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages fetched by a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		hash TEXT,
		size INTEGER,
		fetched_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);

	-- Fetch and persist failures of a run
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		status_code INTEGER,
		message TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID           string
	Seed         string
	Concurrency  int
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       string
	PagesFetched int
	PagesSaved   int
	Failures     int
	Stopped      bool
}

// Finished reports whether the run has been closed with FinishRun.
func (r *RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Duration returns how long the run took, or 0 if it has not finished.
func (r *RunRecord) Duration() time.Duration {
	if !r.Finished() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PageRecord is a stored page. Bodies are not stored; Hash identifies them.
type PageRecord struct {
	URL         string
	StatusCode  int
	ContentType string
	Hash        string
	Size        int
	FetchedAt   time.Time
}

// FailureRecord is a stored fetch or persist failure.
type FailureRecord struct {
	URL        string
	Kind       string
	StatusCode int
	Message    string
	Time       time.Time
}

// BeginRun inserts a run in the "running" state.
func (cdb *CrawlDB) BeginRun(ctx context.Context, report *model.RunReport) error {
	query := `
	INSERT INTO runs (id, seed, concurrency, started_at, status)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		report.ID,
		report.Seed,
		report.Concurrency,
		formatTimestamp(report.StartedAt),
		statusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordPage stores a fetched page of a run.
// Uses UPSERT so that recording the same URL twice keeps the latest values.
func (cdb *CrawlDB) RecordPage(ctx context.Context, runID string, page *model.Page) error {
	query := `
	INSERT INTO pages (run_id, url, status_code, content_type, hash, size, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		hash = excluded.hash,
		size = excluded.size,
		fetched_at = excluded.fetched_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		page.URL,
		page.StatusCode,
		page.ContentType,
		page.Hash,
		page.Size(),
		formatTimestamp(page.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record page: %w", err)
	}
	return nil
}

// RecordFailure stores a failure of a run. kind is FailureKindFetch or
// FailureKindPersist.
func (cdb *CrawlDB) RecordFailure(ctx context.Context, runID, kind string, failure model.Failure) error {
	query := `
	INSERT INTO failures (run_id, url, kind, status_code, message, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		failure.URL,
		kind,
		failure.StatusCode,
		failure.Message,
		formatTimestamp(failure.Time),
	)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, report *model.RunReport) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		status = ?,
		pages_fetched = ?,
		pages_saved = ?,
		failures = ?,
		stopped = ?
	WHERE id = ?
	`

	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(report.FinishedAt),
		report.Status(),
		report.PagesFetched,
		report.PagesSaved,
		len(report.Failures)+len(report.PersistFailures),
		report.Stopped,
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, report.ID)
	}
	return nil
}

const runColumns = `id, seed, concurrency, started_at, finished_at, status,
	pages_fetched, pages_saved, failures, stopped`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var run RunRecord
	var startedAt, finishedAt string

	err := s.Scan(
		&run.ID,
		&run.Seed,
		&run.Concurrency,
		&startedAt,
		&finishedAt,
		&run.Status,
		&run.PagesFetched,
		&run.PagesSaved,
		&run.Failures,
		&run.Stopped,
	)
	if err != nil {
		return RunRecord{}, err
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	return run, nil
}

// GetRun returns the run whose ID is id or starts with id.
// It returns ErrRunNotFound if nothing matches and ErrAmbiguousRunID if a
// prefix matches several runs.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}

	query := `SELECT ` + runColumns + `
	FROM runs
	WHERE id = ? OR id LIKE ? ESCAPE '\'
	ORDER BY started_at DESC
	LIMIT 2
	`

	rows, err := cdb.db.QueryContext(ctx, query, id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.ID == id {
			return &run, nil
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// ListRuns returns runs, newest first. An empty seed lists runs of every
// seed; limit <= 0 lists all of them.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + `
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// RunPages returns the pages of a run ordered by URL.
func (cdb *CrawlDB) RunPages(ctx context.Context, runID string) ([]PageRecord, error) {
	query := `
	SELECT url, status_code, content_type, hash, size, fetched_at
	FROM pages
	WHERE run_id = ?
	ORDER BY url
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run pages: %w", err)
	}
	defer rows.Close()

	pages := make([]PageRecord, 0)
	for rows.Next() {
		var page PageRecord
		var fetchedAt string

		if err := rows.Scan(
			&page.URL,
			&page.StatusCode,
			&page.ContentType,
			&page.Hash,
			&page.Size,
			&fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		page.FetchedAt = parseTimestamp(fetchedAt)
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// RunFailures returns the failures of a run in the order they happened.
func (cdb *CrawlDB) RunFailures(ctx context.Context, runID string) ([]FailureRecord, error) {
	query := `
	SELECT url, kind, status_code, message, occurred_at
	FROM failures
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run failures: %w", err)
	}
	defer rows.Close()

	failures := make([]FailureRecord, 0)
	for rows.Next() {
		var f FailureRecord
		var occurredAt string

		if err := rows.Scan(&f.URL, &f.Kind, &f.StatusCode, &f.Message, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}

		f.Time = parseTimestamp(occurredAt)
		failures = append(failures, f)
	}

	return failures, rows.Err()
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// formatTimestamp stores times in UTC with nanosecond precision, so that
// string order is time order.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampLayout is a fixed-width RFC 3339 layout.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// Empty or unparsable strings yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
