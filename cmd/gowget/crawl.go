package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nao1215/gowget/internal/config"
	"github.com/nao1215/gowget/internal/crawler"
	"github.com/nao1215/gowget/internal/database"
	"github.com/nao1215/gowget/internal/model"
	"github.com/nao1215/gowget/internal/pipeline"
	"github.com/nao1215/gowget/internal/report"
	"github.com/nao1215/gowget/internal/sink"
	"github.com/nao1215/gowget/internal/transport"
)

// errInterrupted is returned when a signal stopped the crawl.
var errInterrupted = errors.New("crawl interrupted")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Recursively download one or more sites",
		Long: `Crawl downloads every page reachable from each seed URL.

Pages are fetched breadth-first, at most --concurrency at a time per seed,
and each URL is fetched once. Every fetched page is saved below --output-dir
as a file named after its URL. Fetch errors are reported and the crawl
carries on. Ctrl-C stops the crawl; pages already received are still saved.

A seed without a scheme is fetched over http, like wget.

Examples:
  # Mirror a site with 16 concurrent fetches
  gowget crawl -n 16 -o mirror https://example.com/

  # Stay on the seed's host, at most two hops deep
  gowget crawl --same-host -d 2 https://example.com/docs/

  # Only follow links in HTML elements, write a Markdown report
  gowget crawl --link-mode html -m -r report.md https://example.com/

  # Crawl through Tor
  gowget crawl --tor http://exampleonionaddress.onion/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of concurrent fetches per seed")
	cmd.Flags().Int("buffer", 0,
		"Fetched pages that may wait to be saved (0 = same as --concurrency)")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of hops from the seed (negative = unlimited)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages fetched per seed (0 = unlimited)")
	cmd.Flags().Bool("same-host", false,
		"Only follow links on the seed's host")
	cmd.Flags().String("link-mode", config.LinkModeText,
		`Link extraction: "text" follows every URL in a body, "html" only links in HTML elements, "all" both`)
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// HTTP flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringP("user-agent", "U", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().Bool("no-check-certificate", false,
		"Do not verify TLS certificates")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Crawl through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory where pages are saved")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .gowget in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Also write the report to this file (stdout keeps a plain summary)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the crawl in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-progress", false,
		"Do not show the progress bar")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BufferSize, err = flags.GetInt("buffer"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.SameHost, err = flags.GetBool("same-host"); err != nil {
		return nil, err
	}
	if cfg.LinkMode, err = flags.GetString("link-mode"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("no-check-certificate"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.NoProgress, err = flags.GetBool("no-progress"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit -c must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if cfg.SiteConfigs, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Seeds = make([]string, len(args))
	for i, arg := range args {
		cfg.Seeds[i] = normalizeSeed(arg)
	}

	return cfg, nil
}

// normalizeSeed adds "http://" to a seed given without a scheme.
func normalizeSeed(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" || strings.Contains(seed, "://") {
		return seed
	}
	return "http://" + seed
}

// runCrawl crawls every seed in cfg and writes one report per seed.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"concurrency", cfg.Concurrency,
		"batch", cfg.BatchSize,
		"output_dir", cfg.OutputDir,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	client, cleanup, err := newTransportClient(ctx, cfg, logger, errOut)
	if err != nil {
		return err
	}
	defer cleanup()

	reportOut, closeReport, err := openReportOutput(cfg, out)
	if err != nil {
		return err
	}
	defer closeReport()
	writer := newReportWriter(cfg, out, reportOut)

	var bar *progressbar.ProgressBar
	if !cfg.NoProgress {
		bar = pipeline.NewProgressBar(errOut, progressMax(cfg), "crawling")
	}

	h := &seedHarvester{
		cfg:    cfg,
		client: client,
		db:     db,
		sink:   sink.NewFileSink(cfg.OutputDir),
		bar:    bar,
		logger: logger,
	}

	bp := pipeline.NewBatchProcessor(h,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	var writeErr error
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Seeds, func(r *model.RunReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if bar != nil {
			_ = bar.Clear() //nolint:errcheck // cosmetic
		}
		if _, err := writer.Write(r); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("failed to write report: %w", err)
		}
	})

	if bar != nil {
		_ = bar.Finish() //nolint:errcheck // cosmetic
		fmt.Fprintln(errOut)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", errInterrupted, ctx.Err())
	}
	if batchErr != nil {
		return batchErr
	}
	return writeErr
}

// newTransportClient builds the client for cfg: embedded Tor, a SOCKS5
// proxy, or direct. cleanup stops the embedded Tor daemon if one was
// started.
func newTransportClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (*transport.Client, func(), error) {
	noop := func() {}
	clientOpts := []transport.ClientOption{transport.WithInsecureSkipVerify(cfg.InsecureSkipVerify)}

	if cfg.UseTor {
		return startEmbeddedTor(ctx, cfg, logger, errOut, clientOpts)
	}

	client, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout, clientOpts...)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if client.UsesProxy() {
		if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Error())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	return client, noop, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client
// that dials through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer, opts []transport.ClientOption) (*transport.Client, func(), error) {
	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintf(errOut, "This may take 1-3 minutes while Tor bootstraps.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	cleanup := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socks_addr", embeddedTor.SocksAddr(),
		"control_addr", embeddedTor.ControlAddr(),
	)

	client, err := embeddedTor.NewClient(cfg.Timeout, opts...)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
		cleanup()
		return nil, func() {}, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	return client, cleanup, nil
}

// openReportOutput returns the report destination: cfg.ReportFile or out.
func openReportOutput(cfg *config.Config, out io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return out, func() {}, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter returns the writer for the configured format. With
// --report the formatted report goes to reportOut and a plain summary still
// goes to out.
func newReportWriter(cfg *config.Config, out, reportOut io.Writer) report.Writer {
	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(reportOut, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(reportOut)
	default:
		w = report.NewSimpleWriter(reportOut, report.WithVerbose(cfg.Verbose))
	}

	if cfg.ReportFile == "" {
		return w
	}
	return report.NewMultiWriter(w, report.NewSimpleWriter(out))
}

// progressMax is the progress bar total: known only when every seed has
// the global page limit.
func progressMax(cfg *config.Config) int {
	if cfg.MaxPages <= 0 {
		return -1
	}
	for _, seed := range cfg.Seeds {
		if cfg.SiteConfig(hostOf(seed)).MaxPages > 0 {
			return -1
		}
	}
	return cfg.MaxPages * len(cfg.Seeds)
}

func hostOf(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// seedHarvester builds a Harvester for each seed from the global settings
// and the seed host's site configuration.
type seedHarvester struct {
	cfg    *config.Config
	client *transport.Client
	db     *database.CrawlDB
	sink   sink.Persister
	bar    *progressbar.ProgressBar
	logger *slog.Logger
}

// Harvest implements pipeline.SeedHarvester.
func (s *seedHarvester) Harvest(ctx context.Context, seed string) (*model.RunReport, error) {
	site := s.cfg.SiteConfig(hostOf(seed))

	userAgent := s.cfg.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}

	fetcher := transport.NewHTTPFetcher(
		s.client.HTTPClientWithConfig(site.Cookie, site.Headers),
		transport.WithUserAgent(userAgent),
		transport.WithMaxBodySize(s.cfg.MaxBodySize),
		transport.WithFetcherLogger(s.logger),
	)

	opts := []pipeline.HarvesterOption{
		pipeline.WithCrawlerOptions(s.crawlerOptions(site)...),
		pipeline.WithPipelineFactory(s.newPipeline),
		pipeline.WithHarvestLogger(s.logger),
	}
	if s.db != nil {
		opts = append(opts, pipeline.WithHistory(s.db))
	}

	start := time.Now()
	r, err := pipeline.NewHarvester(fetcher, opts...).Harvest(ctx, seed)
	s.logger.Debug("seed done", "seed", seed, "elapsed", time.Since(start))
	return r, err
}

func (s *seedHarvester) crawlerOptions(site config.SiteConfig) []crawler.Option {
	maxDepth := s.cfg.MaxDepth
	if site.Depth != nil {
		maxDepth = *site.Depth
	}
	if maxDepth < 0 {
		maxDepth = crawler.NoLimit
	}

	maxPages := s.cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}

	return []crawler.Option{
		crawler.WithConcurrency(s.cfg.Concurrency),
		crawler.WithBufferSize(s.cfg.BufferSize),
		crawler.WithMaxDepth(maxDepth),
		crawler.WithMaxPages(maxPages),
		crawler.WithSameHost(s.cfg.SameHost),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLinkExtractor(newLinkExtractor(s.cfg.LinkMode)),
	}
}

// newLinkExtractor returns the extractor for a --link-mode value.
func newLinkExtractor(mode string) crawler.LinkExtractor {
	switch mode {
	case config.LinkModeHTML:
		return crawler.NewHTMLExtractor()
	case config.LinkModeAll:
		return crawler.Extractors(crawler.NewHTMLExtractor(), crawler.NewTextExtractor())
	default:
		return crawler.NewTextExtractor()
	}
}

// newPipeline builds the per-page steps of one run. A page that cannot be
// saved is still recorded in the history and counted.
func (s *seedHarvester) newPipeline(runID string) *pipeline.Pipeline {
	p := pipeline.New(
		pipeline.WithLogger(s.logger),
		pipeline.WithContinueOnError(true),
	)
	p.AddStep(pipeline.NewSaveStep(s.sink))
	if s.db != nil {
		p.AddStep(pipeline.NewRecordStep(s.db, runID))
	}
	if s.bar != nil {
		p.AddStep(pipeline.NewProgressStep(s.bar))
	}
	return p
}
