package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/platform"
)

func newMigrateCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := openStore(cmd.Context(), cfg, false, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			version, err := platform.AutoMigrate(st.DB(), st.Dialect().Name)
			if err != nil {
				return err
			}
			logger.Info("schema migrated", zap.String("dialect", st.Dialect().Name), zap.Uint("version", version))
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%s)\n", version, st.Dialect().Name)
			return nil
		},
	}
}

func newIndexCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Create the sales secondary indexes if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := openStore(cmd.Context(), cfg, cfg.Store.AutoMigrate, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			names, err := st.BuildIndexes(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexes: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

func newRunsCmd(g *globalOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := openStore(cmd.Context(), cfg, cfg.Store.AutoMigrate, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tSTATUS\tFILES\tPRODUCTS\tSALES\tDROPPED")
			for _, r := range runs {
				dur := "-"
				if !r.FinishedAt.IsZero() {
					dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				files := fmt.Sprintf("%d/%d/%d/%d", r.FilesLoaded, r.FilesQuarantined, r.FilesFailed, r.FilesSkipped)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.RunID, r.StartedAt.Format(time.RFC3339), dur, r.Status, files,
					r.ProductsUpserted, r.SalesInserted, r.SalesDropped)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}
