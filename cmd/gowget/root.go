package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/gowget/internal/log"
)

// NewRootCmd creates the root command for gowget.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gowget",
		Short: "Recursively download web sites",
		Long: `gowget recursively downloads web sites.

It crawls breadth-first from one or more seed URLs, fetching up to
--concurrency pages at a time, saves every page below --output-dir and
records each run in a local history database.

Crawls can run directly, through a SOCKS5 proxy (--proxy) or through an
embedded Tor daemon (--tor).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this file (rotated)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// logOptions reads the global logging flags. Missing flags (a subcommand
// run on its own in tests) fall back to the zero value.
func logOptions(cmd *cobra.Command) log.Options {
	opts := log.Options{Verbose: getVerboseFlag(cmd)}
	if file, err := cmd.Flags().GetString("log-file"); err == nil {
		opts.File = file
	}
	if jsonLogs, err := cmd.Flags().GetBool("log-json"); err == nil {
		opts.JSON = jsonLogs
	}
	return opts
}

// setupLogger creates the logger for a command and makes it the default.
func setupLogger(cmd *cobra.Command) (*slog.Logger, io.Closer, error) {
	logger, closer, err := log.New(cmd.ErrOrStderr(), logOptions(cmd))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}
