package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "gowget"

	// DefaultTimeout bounds a single HTTP request, redirects included.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of fetches one crawl runs at once.
	DefaultConcurrency = 4

	// DefaultMaxDepth disables the depth limit. Any negative value does.
	DefaultMaxDepth = -1

	// DefaultMaxPages of 0 means no page limit.
	DefaultMaxPages = 0

	// DefaultBatchSize is the number of seeds crawled at once.
	DefaultBatchSize = 1

	// DefaultOutputDir is where fetched pages are saved.
	DefaultOutputDir = "."

	// DefaultUserAgent identifies gowget in HTTP requests.
	DefaultUserAgent = "gowget/1.0 (+https://github.com/nao1215/gowget)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// Link extraction modes.
	LinkModeText = "text"
	LinkModeHTML = "html"
	LinkModeAll  = "all"
)

// Config holds all options of one gowget invocation. It is built from CLI
// flags and the configuration file and passed down explicitly.
type Config struct {
	// Seeds are the URLs to crawl from. Each seed is an independent crawl.
	Seeds []string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Concurrency is the maximum number of concurrent fetches per crawl.
	Concurrency int

	// BufferSize is how many fetched pages may wait for the consumer.
	// Zero means the same as Concurrency.
	BufferSize int

	// MaxDepth is the maximum number of hops from the seed.
	// Negative values mean unlimited.
	MaxDepth int

	// MaxPages caps the number of URLs fetched per crawl. Zero means no cap.
	MaxPages int

	// SameHost keeps each crawl on its seed's host.
	SameHost bool

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// LinkMode selects the link extractor: LinkModeText finds every URL in
	// the body, LinkModeHTML only follows links in HTML elements and
	// LinkModeAll uses both.
	LinkMode string

	// OutputDir is where page bodies are written.
	OutputDir string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// ProxyAddress is a SOCKS5 proxy in "host:port" format. Empty means
	// direct connections.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// ConfigFilePath is the configuration file given with -c.
	ConfigFilePath string

	// SiteConfigs holds the per-host settings of the configuration file.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format. Plain text
	// is used when neither is set.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// SaveToDB records every run in the crawl history.
	SaveToDB bool

	// DBDir is the directory of the history database.
	DBDir string

	// NoProgress disables the progress bar.
	NoProgress bool

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string

	// LogJSON switches log output to JSON.
	LogJSON bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		Concurrency:       DefaultConcurrency,
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
		BatchSize:         DefaultBatchSize,
		LinkMode:          LinkModeText,
		OutputDir:         DefaultOutputDir,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		SiteConfigs:       &File{Sites: make(map[string]SiteConfig)},
	}
}

// XDGDataDir returns the XDG data directory for gowget, where the crawl
// history lives.
// On Linux: ~/.local/share/gowget
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for gowget.
// On Linux: ~/.config/gowget
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory for gowget, the default
// place for log files.
// On Linux: ~/.local/state/gowget
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BufferSize < 0 {
		return ErrInvalidBufferSize
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.LinkMode {
	case LinkModeText, LinkModeHTML, LinkModeAll:
	default:
		return ErrInvalidLinkMode
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	return nil
}

// SiteConfig returns the merged site settings for host.
func (c *Config) SiteConfig(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}
