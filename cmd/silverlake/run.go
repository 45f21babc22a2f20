package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/ingestion"
	"github.com/silverlake/silverlake/pkg/config"
	"github.com/silverlake/silverlake/pkg/report"
	"github.com/silverlake/silverlake/pkg/surface"
)

type runOpts struct {
	outputFmt       string
	batchSize       int
	failFast        bool
	skipLoaded      bool
	noIndexes       bool
	fetchFirst      bool
	metricsTextfile string
}

func newRunCmd(g *globalOpts) *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every file in the staging directory once",
		Long: `Routes each staged file by extension, loads catalogs before sales,
quarantines unknown files, and builds the sales indexes at the end.
Exits non-zero when the run fails or any file could not be loaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.outputFmt, "output", "text", "Report format: text, json or markdown")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Rows per committed batch (overrides load.batch_size)")
	f.BoolVar(&opts.failFast, "fail-fast", false, "Abort the run on the first malformed file")
	f.BoolVar(&opts.skipLoaded, "skip-loaded", false, "Skip files whose content was already loaded")
	f.BoolVar(&opts.noIndexes, "no-indexes", false, "Do not build the sales indexes after loading")
	f.BoolVar(&opts.fetchFirst, "fetch", false, "Fetch extracts from source.uri into staging before the run")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write run metrics to this Prometheus textfile")

	return cmd
}

func runPipeline(ctx context.Context, cmd *cobra.Command, g *globalOpts, opts runOpts) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if opts.batchSize > 0 {
		cfg.Load.BatchSize = opts.batchSize
	}
	if flags.Changed("fail-fast") {
		cfg.Load.FailFast = opts.failFast
	}
	if flags.Changed("skip-loaded") {
		cfg.Load.SkipLoadedFiles = opts.skipLoaded
	}
	if opts.noIndexes {
		cfg.Load.BuildIndexes = false
	}
	textfile := firstNonEmpty(opts.metricsTextfile, cfg.Metrics.Textfile)

	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if opts.fetchFirst {
		if err := fetchExtracts(ctx, cfg, logger); err != nil {
			return err
		}
	}

	st, err := openStore(ctx, cfg, cfg.Store.AutoMigrate, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := ingestion.NewMetrics()
	svc := ingestion.NewService(st, ingestion.OptionsFromConfig(cfg), logger, metrics)

	rep, runErr := svc.Run(ctx)
	if rep != nil {
		if rerr := renderer.Render(cmd.OutOrStdout(), rep); rerr != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("render report: %w", rerr))
		}
	}
	if textfile != "" {
		if werr := metrics.WriteTextfile(textfile); werr != nil {
			logger.Warn("failed to write metrics textfile", zap.String("path", textfile), zap.Error(werr))
		}
	}

	if runErr != nil {
		return runErr
	}
	return exitStatus(rep)
}

// exitStatus turns a finished but partial run into an error so the process
// exits non-zero.
func exitStatus(rep *report.RunReport) error {
	if rep != nil && rep.Status == report.StatusPartial {
		return fmt.Errorf("run %s finished %s: %d file(s) failed", rep.RunID, rep.Status, rep.Totals.FilesFailed)
	}
	return nil
}

func fetchExtracts(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	src, err := ingestion.OpenSource(ctx, ingestion.SourceConfig{
		URI:       cfg.Source.URI,
		Region:    cfg.Source.Region,
		Endpoint:  cfg.Source.Endpoint,
		AccessKey: cfg.Source.AccessKey,
		SecretKey: cfg.Source.SecretKey,
	})
	if err != nil {
		return err
	}
	names, err := ingestion.FetchAll(ctx, src, cfg.Staging.Dir, logger)
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", cfg.Source.URI, err)
	}
	logger.Info("fetch complete", zap.String("source", cfg.Source.URI), zap.Int("files", len(names)))
	return nil
}
