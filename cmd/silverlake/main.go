// Package main provides the silverlake CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalOpts

	rootCmd := &cobra.Command{
		Use:   "silverlake",
		Short: "Normalize and load product catalogs and sales extracts",
		Long: `Silverlake scans a staging directory of catalog (JSON) and sales (CSV)
extracts, cleans every record, and loads them into a relational warehouse
with deduplicated categories and idempotent product upserts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to config file (default: search for .silverlake/config.yaml)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Path to a .env file loaded before reading the environment")
	pf.StringVar(&g.driver, "db-driver", "", "Database driver: postgres or sqlite")
	pf.StringVar(&g.dsn, "dsn", "", "Database connection string")
	pf.StringVar(&g.stagingDir, "staging-dir", "", "Staging directory to scan")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(
		newRunCmd(&g),
		newFetchCmd(&g),
		newMigrateCmd(&g),
		newIndexCmd(&g),
		newRunsCmd(&g),
	)
	return rootCmd
}
