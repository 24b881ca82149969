// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/internal/export"
	"github.com/pdiddy/faculty-papers/internal/harvest"
	"github.com/pdiddy/faculty-papers/internal/httputil"
	"github.com/pdiddy/faculty-papers/internal/observability"
	"github.com/pdiddy/faculty-papers/internal/roster"
	"github.com/pdiddy/faculty-papers/internal/source"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [name...]",
	Short: "Collect recent publications for each subject and export them",
	Long: `Harvest looks up every subject named on the command line, in the roster
file, and in the config file. For each subject it keeps the most recent
publications up to the publication limit, fills in abstract, title, and
date, and writes one row per publication to the output file.

Subjects that cannot be found are listed at the end of the run. The output
is written even when the run is interrupted or a worker fails.`,
	SilenceUsage: true,
	RunE:         runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.String("roster", "", "file of subject names (one per line, or YAML list)")
	f.Int("workers", 0, "number of concurrent workers (default 4)")
	f.Int("chunk-size", 0, "subjects per worker group (default: split evenly)")
	f.Int("publication-limit", 0, "publications kept per subject (default 2)")
	f.Int("retries", 0, "attempts per remote lookup (default 3)")
	f.String("sort-by", "", "recency criterion: year or citations")
	f.Bool("sort-output", true, "sort rows by subject before export")

	f.StringP("output", "o", "", "output file (default papers.xlsx)")
	f.String("format", "", "output format: xlsx, csv, json, yaml, sqlite (default: from extension)")
	f.StringSlice("also", nil, "extra output file, format from extension (repeatable)")
	f.String("report", "", "write failed subjects and publications to this file")
	f.Bool("legacy-columns", false, "use the original spreadsheet column titles")

	f.String("egress-mode", "", "egress supplier: direct, list, fetch")
	f.StringSlice("proxy", nil, "proxy address for list mode (repeatable)")
	f.String("proxy-list-url", "", "proxy list endpoint for fetch mode")
	f.String("probe-url", "", "URL requested through each fetched proxy before use")
	f.Duration("acquire-timeout", 0, "timeout for one route acquisition (default 30s)")
	f.Duration("acquire-wait", 0, "minimum interval between route acquisitions (default 2s)")

	f.String("source", "", "record source: semantic_scholar or openalex")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")

	for flag, key := range map[string]string{
		"workers":           "harvest.workers",
		"chunk-size":        "harvest.chunk_size",
		"publication-limit": "harvest.publication_limit",
		"retries":           "harvest.retry_count",
		"sort-by":           "harvest.sort_by",
		"sort-output":       "harvest.sort_output",
		"output":            "export.path",
		"format":            "export.format",
		"also":              "export.also",
		"report":            "export.report_path",
		"legacy-columns":    "export.legacy_columns",
		"egress-mode":       "egress.mode",
		"proxy":             "egress.proxies",
		"proxy-list-url":    "egress.list_url",
		"probe-url":         "egress.probe_url",
		"acquire-timeout":   "egress.acquire_timeout",
		"acquire-wait":      "egress.acquire_wait",
		"source":            "source.backend",
		"metrics-addr":      "metrics.addr",
	} {
		bindFlag(f.Lookup(flag), key)
	}

	rootCmd.AddCommand(harvestCmd)
}

// bindFlag ties a flag to a config key. Viper only takes the flag value
// when the flag was set, so defaults from config files still apply.
func bindFlag(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag.Name, err))
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Logging, nil)

	rosterFile, _ := cmd.Flags().GetString("roster")
	subjects, err := roster.Collect(args, rosterFile, cfg.Subjects)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return errors.New("no subjects: pass names as arguments, use --roster, or set subjects in the config file")
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}
	supplier, err := newSupplier(cfg.Egress)
	if err != nil {
		return err
	}
	exporter, err := export.New(cfg.Export)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	if cfg.Metrics.Addr != "" {
		metricsCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics server failed")
			}
		}()
	}

	pool := &harvest.Pool{
		Source:     src,
		Supplier:   supplier,
		Options:    harvest.OptionsFrom(cfg),
		Workers:    cfg.Harvest.Workers,
		ChunkSize:  cfg.Harvest.ChunkSize,
		SortOutput: cfg.Harvest.SortOutput,
		Exporter:   exporter,
		Logger:     logger,
		Metrics:    metrics,
	}
	result, runErr := pool.Run(ctx, subjects)

	if cfg.Export.ReportPath != "" {
		if err := export.WriteReport(cfg.Export.ReportPath, result); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("writing report: %w", err))
		}
	}

	printSummary(cmd.OutOrStdout(), cfg.Export.Path, result)
	return runErr
}

// newSupplier builds the egress supplier, probing fetched proxies when a
// probe URL is configured.
func newSupplier(cfg types.EgressConfig) (egress.Supplier, error) {
	if cfg.ProbeURL == "" {
		return egress.New(cfg, nil)
	}
	return egress.New(cfg, httputil.Prober{URL: cfg.ProbeURL})
}

func printSummary(w io.Writer, output string, result types.RunResult) {
	fmt.Fprintf(w, "Wrote %d rows to %s\n", len(result.Rows), output)
	if len(result.FailedSubjects) > 0 {
		fmt.Fprintf(w, "Subjects not found (%d):\n", len(result.FailedSubjects))
		for _, s := range result.FailedSubjects {
			fmt.Fprintln(w, "  ", s)
		}
	}
	if len(result.FailedPublications) > 0 {
		fmt.Fprintf(w, "Publications with missing fields (%d):\n", len(result.FailedPublications))
		for _, t := range result.FailedPublications {
			fmt.Fprintln(w, "  ", t)
		}
	}
}
