package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Load.BatchSize != 1000 {
		t.Errorf("expected default batch size 1000, got %d", cfg.Load.BatchSize)
	}
	if cfg.Load.LookupChunkSize != 500 {
		t.Errorf("expected default lookup chunk 500, got %d", cfg.Load.LookupChunkSize)
	}
	if cfg.Staging.QuarantineDir != "unknown_files" {
		t.Errorf("expected quarantine dir 'unknown_files', got %q", cfg.Staging.QuarantineDir)
	}
	if cfg.Load.FailFast || cfg.Load.SkipLoadedFiles {
		t.Error("expected fail_fast and skip_loaded_files off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		missing bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "non-existent file returns defaults",
			missing: true,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store.Driver != "sqlite" {
					t.Errorf("expected default driver sqlite, got %q", cfg.Store.Driver)
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
store:
  driver: postgres
  dsn: "postgres://etl@localhost/warehouse?sslmode=disable"
staging:
  dir: /srv/staging
load:
  batch_size: 250
  fail_fast: true
lease:
  ttl: 30m
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store.Driver != "postgres" {
					t.Errorf("expected driver postgres, got %q", cfg.Store.Driver)
				}
				if cfg.Load.BatchSize != 250 {
					t.Errorf("expected batch size 250, got %d", cfg.Load.BatchSize)
				}
				if !cfg.Load.FailFast {
					t.Error("expected FailFast true")
				}
				if cfg.Lease.TTL != 30*time.Minute {
					t.Errorf("expected lease ttl 30m, got %s", cfg.Lease.TTL)
				}
				// Untouched sections keep defaults.
				if cfg.Load.LookupChunkSize != 500 {
					t.Errorf("expected default lookup chunk, got %d", cfg.Load.LookupChunkSize)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if !tc.missing {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("write test config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SILVERLAKE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://etl@db/warehouse")
	t.Setenv("SILVERLAKE_STAGING_DIR", "/data/in")
	t.Setenv("SILVERLAKE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Store.Driver != "postgres" {
		t.Errorf("expected driver inferred from URL, got %q", cfg.Store.Driver)
	}
	if cfg.Store.DSN != "postgres://etl@db/warehouse" {
		t.Errorf("unexpected DSN %q", cfg.Store.DSN)
	}
	if cfg.Staging.Dir != "/data/in" || cfg.Logging.Level != "debug" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Staging, cfg.Logging)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadEnv(filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SILVERLAKE_TEST_ONLY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SILVERLAKE_TEST_ONLY", "")
	os.Unsetenv("SILVERLAKE_TEST_ONLY")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}
	if got := os.Getenv("SILVERLAKE_TEST_ONLY"); got != "from-dotenv" {
		t.Errorf("expected variable from .env, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "oracle"
	cfg.Load.BatchSize = 0
	cfg.Staging.FailedDir = "../elsewhere"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"store.driver", "load.batch_size", "staging.failed_dir"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_StableOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Staging.QuarantineDir = ""
	cfg.Staging.FailedDir = "/abs"
	cfg.Staging.RejectsDir = "../up"

	first := cfg.Validate().Error()
	for i := 0; i < 20; i++ {
		if got := cfg.Validate().Error(); got != first {
			t.Fatalf("Validate() text changed between calls:\n%s\nvs\n%s", first, got)
		}
	}
	q := strings.Index(first, "staging.quarantine_dir")
	f := strings.Index(first, "staging.failed_dir")
	r := strings.Index(first, "staging.rejects_dir")
	if q < 0 || f < 0 || r < 0 || !(q < f && f < r) {
		t.Errorf("expected quarantine, failed, rejects order in %q", first)
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(nested); got != "" {
		t.Errorf("expected no config, got %q", got)
	}

	cfgDir := filepath.Join(root, ".silverlake")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cfgDir, "config.yaml")
	if err := os.WriteFile(want, []byte("load:\n  batch_size: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(nested); got != want {
		t.Errorf("FindConfigFile() = %q, want %q", got, want)
	}
}
