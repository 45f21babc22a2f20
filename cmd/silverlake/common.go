package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/platform"
	"github.com/silverlake/silverlake/internal/store"
	"github.com/silverlake/silverlake/pkg/config"
)

// globalOpts holds the persistent flags shared by every command.
type globalOpts struct {
	configPath string
	envFile    string
	driver     string
	dsn        string
	stagingDir string
	logLevel   string
	logFormat  string
}

// loadConfig resolves configuration in increasing precedence: defaults,
// config file, .env and environment, then flags.
func loadConfig(g *globalOpts) (*config.Config, error) {
	path := g.configPath
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(cwd)
		}
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if g.envFile != "" {
		if err := config.LoadEnv(g.envFile); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	cfg.Store.Driver = firstNonEmpty(g.driver, cfg.Store.Driver)
	cfg.Store.DSN = firstNonEmpty(g.dsn, cfg.Store.DSN)
	cfg.Staging.Dir = firstNonEmpty(g.stagingDir, cfg.Staging.Dir)
	cfg.Logging.Level = firstNonEmpty(g.logLevel, cfg.Logging.Level)
	cfg.Logging.Format = firstNonEmpty(g.logFormat, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return platform.NewLogger(platform.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}, os.Stderr)
}

// openStore connects to the warehouse, migrating it first when migrate is
// set.
func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, cfg.Store.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if migrate {
		version, err := platform.AutoMigrate(st.DB(), st.Dialect().Name)
		if err != nil {
			st.Close()
			return nil, err
		}
		logger.Debug("schema up to date", zap.String("dialect", st.Dialect().Name), zap.Uint("version", version))
	}
	return st, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
