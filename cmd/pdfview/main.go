// Command pdfview inspects, renders and serves PDF documents with the
// paged viewer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfviewer/config"
	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/pdfdoc"
	"github.com/wudi/pdfviewer/source"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfview",
	Short: "Paged PDF viewer",
	Long: `pdfview opens PDF documents by URL and shows them one page at a time.
It can report on a document, render pages to PNG, list viewer mounts in
host markup and serve viewers to browsers over WebSocket.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pdfview.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, observability.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Logger(), nil
}

// newLoader builds the document loader. Local commands may read files; the
// server only fetches what the configuration allows.
func newLoader(cfg *config.Config, logger observability.Logger, allowFiles bool) *pdfdoc.Loader {
	sc := cfg.SourceOptions(logger)
	sc.AllowFiles = sc.AllowFiles || allowFiles
	return pdfdoc.NewLoader(pdfdoc.Config{
		Fetcher: source.NewHTTPFetcher(sc),
		Parser:  cfg.ParserOptions(),
		Logger:  logger,
	})
}
