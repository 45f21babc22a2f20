// Package ingestion runs the load pipeline over a staging directory:
// it routes each staged extract to its loader, isolates failing files,
// keeps the run and file ledgers, and builds indexes at the end. It also
// copies extracts into staging from local or object storage.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ExtractSource abstracts where daily extracts are published.
type ExtractSource interface {
	// List returns the names of the available extracts.
	List(ctx context.Context) ([]string, error)
	// Fetch returns the contents of the named extract.
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// LocalSource implements ExtractSource over a local directory.
// Useful for development and testing.
type LocalSource struct {
	BaseDir string
}

// NewLocalSource creates a LocalSource rooted at the given directory.
func NewLocalSource(baseDir string) *LocalSource {
	return &LocalSource{BaseDir: baseDir}
}

// List returns the regular files directly under BaseDir.
func (s *LocalSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.BaseDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Fetch reads one file.
func (s *LocalSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.BaseDir, filepath.Base(name)))
}

// SourceConfig holds the settings needed to open any ExtractSource.
type SourceConfig struct {
	URI       string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// OpenSource picks a source from cfg.URI: s3://bucket/prefix,
// gs://bucket/prefix, or a local directory.
func OpenSource(ctx context.Context, cfg SourceConfig) (ExtractSource, error) {
	switch {
	case strings.HasPrefix(cfg.URI, "s3://"):
		bucket, prefix := splitBucket(strings.TrimPrefix(cfg.URI, "s3://"))
		return NewS3Source(ctx, S3Config{
			Bucket:    bucket,
			Prefix:    prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case strings.HasPrefix(cfg.URI, "gs://"):
		bucket, prefix := splitBucket(strings.TrimPrefix(cfg.URI, "gs://"))
		return NewGCSSource(ctx, bucket, prefix)
	case cfg.URI == "":
		return nil, fmt.Errorf("source uri is required")
	default:
		return NewLocalSource(strings.TrimPrefix(cfg.URI, "file://")), nil
	}
}

func splitBucket(s string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(s, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix
}

// FetchAll copies every extract from src into stagingDir. Each file is
// written to a dot-prefixed temporary name and renamed into place, so a
// concurrent scan never sees a partial file. It returns the names copied.
func FetchAll(ctx context.Context, src ExtractSource, stagingDir string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := src.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	var copied []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		data, err := src.Fetch(ctx, name)
		if err != nil {
			return copied, fmt.Errorf("fetch %s: %w", name, err)
		}
		base := filepath.Base(name)
		tmp := filepath.Join(stagingDir, "."+base+".tmp")
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return copied, fmt.Errorf("write %s: %w", base, err)
		}
		if err := os.Rename(tmp, filepath.Join(stagingDir, base)); err != nil {
			os.Remove(tmp)
			return copied, fmt.Errorf("stage %s: %w", base, err)
		}
		copied = append(copied, base)
		logger.Info("extract staged", zap.String("file", base), zap.Int("bytes", len(data)))
	}
	return copied, nil
}
