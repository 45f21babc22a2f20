package main

import (
	"github.com/spf13/cobra"
)

func newFetchCmd(g *globalOpts) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Copy extracts from object storage into the staging directory",
		Long: `Lists the configured source (s3://bucket/prefix, gs://bucket/prefix or a
local directory) and stages every object. Files are renamed into place only
once fully written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			cfg.Source.URI = firstNonEmpty(source, cfg.Source.URI)

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return fetchExtracts(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source URI (overrides source.uri)")
	return cmd
}
