package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/loader"
	"github.com/silverlake/silverlake/internal/store"
	"github.com/silverlake/silverlake/pkg/config"
	"github.com/silverlake/silverlake/pkg/report"
)

// Options configures a pipeline run.
type Options struct {
	StagingDir    string
	QuarantineDir string // absolute, or relative to the working directory
	FailedDir     string
	RejectsDir    string

	BatchSize       int
	LookupChunkSize int
	ReadChunkSize   int

	FailFast     bool
	SkipLoaded   bool
	WriteRejects bool
	BuildIndexes bool

	LeaseName string
	LeaseTTL  time.Duration
}

// OptionsFromConfig maps the loaded configuration onto run options. Side
// directories are placed under the staging directory.
func OptionsFromConfig(cfg *config.Config) Options {
	staging := cfg.Staging.Dir
	return Options{
		StagingDir:      staging,
		QuarantineDir:   filepath.Join(staging, cfg.Staging.QuarantineDir),
		FailedDir:       filepath.Join(staging, cfg.Staging.FailedDir),
		RejectsDir:      filepath.Join(staging, cfg.Staging.RejectsDir),
		BatchSize:       cfg.Load.BatchSize,
		LookupChunkSize: cfg.Load.LookupChunkSize,
		ReadChunkSize:   cfg.Load.ReadChunkSize,
		FailFast:        cfg.Load.FailFast,
		SkipLoaded:      cfg.Load.SkipLoadedFiles,
		WriteRejects:    cfg.Load.WriteRejects,
		BuildIndexes:    cfg.Load.BuildIndexes,
		LeaseName:       cfg.Lease.Name,
		LeaseTTL:        cfg.Lease.TTL,
	}
}

// Service orchestrates a pipeline run over the staging directory.
type Service struct {
	store   *store.Store
	opts    Options
	log     *zap.Logger
	metrics *Metrics

	now   func() time.Time
	newID func() string
}

// NewService creates a new pipeline Service. metrics may be nil.
func NewService(st *store.Store, opts Options, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LeaseName == "" {
		opts.LeaseName = "silverlake-load"
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 2 * time.Hour
	}
	return &Service{
		store:   st,
		opts:    opts,
		log:     logger,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Run processes every file in the staging directory once and returns the
// run report. A file that cannot be decoded is moved to the failed
// directory and the run continues; store and integrity errors abort the
// run. The report is returned in both cases.
func (s *Service) Run(ctx context.Context) (rep *report.RunReport, err error) {
	runID := s.newID()
	rep = &report.RunReport{
		RunID:      runID,
		Status:     report.StatusRunning,
		StagingDir: s.opts.StagingDir,
		StartedAt:  s.now().UTC(),
	}
	log := s.log.With(zap.String("run_id", runID))

	// 1. Take the single-writer lease
	lease, err := s.store.AcquireLease(ctx, s.opts.LeaseName, runID, s.opts.LeaseTTL)
	if err != nil {
		rep.Settle(err, s.now().UTC())
		return rep, err
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			err = multierr.Append(err, relErr)
		}
	}()

	// 2. Open the run in the ledger
	if err := s.store.CreateRun(ctx, runID, report.StatusRunning, rep.StartedAt); err != nil {
		rep.Settle(err, s.now().UTC())
		return rep, err
	}
	var categories *loader.CategoryResolver
	defer func() {
		if categories != nil {
			rep.Totals.CategoriesCreated = categories.Created()
		}
		rep.Settle(err, s.now().UTC())
		finErr := s.store.FinishRun(context.WithoutCancel(ctx), store.RunRecord{
			RunID:            runID,
			FinishedAt:       rep.FinishedAt,
			Status:           rep.Status,
			FilesLoaded:      rep.Totals.FilesLoaded,
			FilesQuarantined: rep.Totals.FilesQuarantined,
			FilesFailed:      rep.Totals.FilesFailed,
			FilesSkipped:     rep.Totals.FilesSkipped,
			ProductsUpserted: rep.Totals.ProductsUpserted,
			SalesInserted:    rep.Totals.SalesInserted,
			SalesDropped:     rep.Totals.SalesDropped,
			Error:            rep.Error,
		})
		err = multierr.Append(err, finErr)
		s.metrics.RecordRun(rep)

		fields := []zap.Field{
			zap.String("status", rep.Status),
			zap.Int("files_loaded", rep.Totals.FilesLoaded),
			zap.Int("files_failed", rep.Totals.FilesFailed),
			zap.Int("files_quarantined", rep.Totals.FilesQuarantined),
			zap.Int("products_upserted", rep.Totals.ProductsUpserted),
			zap.Int("sales_inserted", rep.Totals.SalesInserted),
			zap.Int("sales_dropped", rep.Totals.SalesDropped),
			zap.Duration("elapsed", rep.Duration()),
		}
		if err != nil {
			log.Error("run failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("run finished", fields...)
		}
	}()

	// 3. Build the per-run category cache and the loaders sharing it
	categories = loader.NewCategoryResolver(s.store, log)
	if err := categories.Warm(ctx); err != nil {
		return rep, err
	}
	products := loader.NewProductLoader(s.store, categories, s.opts.BatchSize, log)
	sales := loader.NewSalesLoader(s.store, s.opts.BatchSize, s.opts.LookupChunkSize, log)
	if s.metrics != nil {
		products.OnBatch(s.metrics.RecordBatch)
		sales.OnBatch(s.metrics.RecordBatch)
	}
	router := NewRouter(products, sales, RouterOptions{
		StagingDir:    s.opts.StagingDir,
		QuarantineDir: s.opts.QuarantineDir,
		FailedDir:     s.opts.FailedDir,
		RejectsDir:    s.opts.RejectsDir,
		ReadChunkSize: s.opts.ReadChunkSize,
		WriteRejects:  s.opts.WriteRejects,
	}, log)

	// 4. Route every staged file
	files, err := router.Scan()
	if err != nil {
		return rep, err
	}
	log.Info("run started", zap.String("staging_dir", s.opts.StagingDir), zap.Int("files", len(files)))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := lease.Renew(ctx); err != nil {
			return rep, err
		}
		out, err := s.processFile(ctx, router, runID, f)
		rep.Add(out)
		s.metrics.RecordFile(out)
		if err != nil {
			return rep, fmt.Errorf("file %s: %w", f.Name, err)
		}
	}

	// 5. Index the fact table
	if s.opts.BuildIndexes {
		names, err := s.store.BuildIndexes(ctx)
		rep.Indexes = names
		if err != nil {
			return rep, err
		}
	}

	return rep, nil
}

// processFile handles one staged file. A non-nil error aborts the run.
func (s *Service) processFile(ctx context.Context, router *Router, runID string, f StagedFile) (out report.FileOutcome, err error) {
	began := s.now()
	log := s.log.With(zap.String("run_id", runID), zap.String("file", f.Name), zap.String("kind", string(f.Kind)))
	defer func() { out.Duration = s.now().Sub(began) }()

	if f.Kind == report.KindUnknown {
		out, err := router.Quarantine(f)
		if err != nil {
			// A file that cannot be moved stays in staging and is retried.
			log.Warn("quarantine failed", zap.Error(err))
			out.Status = report.FileFailed
			out.Error = err.Error()
		}
		return out, s.recordFile(ctx, runID, out)
	}

	out = report.FileOutcome{Name: f.Name, Kind: f.Kind}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return s.failFile(ctx, router, runID, f, out, fmt.Errorf("%w: %v", ErrMalformedExtract, err), log)
	}
	out.Fingerprint = fingerprint(raw)

	if s.opts.SkipLoaded {
		done, err := s.store.FileLoaded(ctx, out.Fingerprint, string(report.FileLoaded))
		if err != nil {
			return out, err
		}
		if done {
			out.Status = report.FileSkipped
			log.Info("file already loaded, skipping", zap.String("fingerprint", out.Fingerprint))
			return out, s.recordFile(ctx, runID, out)
		}
	}

	data, err := toUTF8(raw)
	if err != nil {
		return s.failFile(ctx, router, runID, f, out, err, log)
	}

	loaded, err := router.Dispatch(ctx, f, data)
	loaded.Fingerprint = out.Fingerprint
	if err != nil {
		if errors.Is(err, ErrMalformedExtract) {
			return s.failFile(ctx, router, runID, f, loaded, err, log)
		}
		loaded.Status = report.FileFailed
		loaded.Error = err.Error()
		if recErr := s.recordFile(context.WithoutCancel(ctx), runID, loaded); recErr != nil {
			err = multierr.Append(err, recErr)
		}
		return loaded, err
	}

	log.Info("file loaded",
		zap.Int("rows_read", loaded.RowsRead),
		zap.Int("rows_loaded", loaded.RowsLoaded),
		zap.Int("rows_dropped", loaded.RowsDropped),
		zap.Int("batches", len(loaded.Batches)),
	)
	return loaded, s.recordFile(ctx, runID, loaded)
}

// failFile sets a malformed file aside and records it. With FailFast the
// cause is returned and the run stops.
func (s *Service) failFile(ctx context.Context, router *Router, runID string, f StagedFile, out report.FileOutcome, cause error, log *zap.Logger) (report.FileOutcome, error) {
	out.Status = report.FileFailed
	out.Error = cause.Error()
	log.Error("file failed", zap.Error(cause))

	dst, err := router.SetAside(f)
	if err != nil {
		log.Warn("moving failed file aside failed", zap.Error(err))
	} else {
		out.MovedTo = dst
	}

	if err := s.recordFile(ctx, runID, out); err != nil {
		return out, err
	}
	if s.opts.FailFast {
		return out, cause
	}
	return out, nil
}

func (s *Service) recordFile(ctx context.Context, runID string, out report.FileOutcome) error {
	return s.store.RecordFileLoad(ctx, store.FileLoadRecord{
		RunID:       runID,
		FileName:    out.Name,
		Kind:        string(out.Kind),
		Fingerprint: out.Fingerprint,
		Status:      string(out.Status),
		RowsRead:    out.RowsRead,
		RowsLoaded:  out.RowsLoaded,
		RowsDropped: out.RowsDropped,
		Error:       out.Error,
	})
}
