package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/silverlake/silverlake/internal/loader"
	"github.com/silverlake/silverlake/pkg/record"
	"github.com/silverlake/silverlake/pkg/report"
)

// rejectReason is written next to each dropped sales row.
const rejectReason = "unknown product_id"

// StagedFile is a regular file found in the staging directory.
type StagedFile struct {
	Name string
	Path string
	Kind report.FileKind
}

// Classify maps a file name to its extract kind by extension.
func Classify(name string) report.FileKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return report.KindSales
	case ".json", ".jsonl", ".ndjson":
		return report.KindCatalog
	default:
		return report.KindUnknown
	}
}

// kindRank orders catalogs before sales so same-day sales find their
// products.
func kindRank(k report.FileKind) int {
	switch k {
	case report.KindCatalog:
		return 0
	case report.KindSales:
		return 1
	default:
		return 2
	}
}

// RouterOptions configures a Router. Side directories are absolute or
// relative to the working directory.
type RouterOptions struct {
	StagingDir    string
	QuarantineDir string
	FailedDir     string
	RejectsDir    string
	ReadChunkSize int
	WriteRejects  bool
}

// Router classifies staged files and dispatches them to the loaders.
type Router struct {
	products *loader.ProductLoader
	sales    *loader.SalesLoader
	opts     RouterOptions
	log      *zap.Logger
}

// NewRouter creates a Router over the given loaders.
func NewRouter(products *loader.ProductLoader, sales *loader.SalesLoader, opts RouterOptions, logger *zap.Logger) *Router {
	if opts.ReadChunkSize <= 0 {
		opts.ReadChunkSize = 10 * loader.DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{products: products, sales: sales, opts: opts, log: logger}
}

// Scan lists the regular files of the staging directory in processing
// order: catalogs, then sales, then unrecognized files, each by name.
// Subdirectories and dot files are ignored.
func (r *Router) Scan() ([]StagedFile, error) {
	entries, err := os.ReadDir(r.opts.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("read staging directory: %w", err)
	}
	var files []StagedFile
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, StagedFile{
			Name: e.Name(),
			Path: filepath.Join(r.opts.StagingDir, e.Name()),
			Kind: Classify(e.Name()),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		ri, rj := kindRank(files[i].Kind), kindRank(files[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Quarantine moves an unrecognized file out of the staging directory.
func (r *Router) Quarantine(f StagedFile) (report.FileOutcome, error) {
	out := report.FileOutcome{Name: f.Name, Kind: f.Kind, Status: report.FileQuarantined}
	dst, err := moveInto(f.Path, r.opts.QuarantineDir)
	if err != nil {
		return out, fmt.Errorf("quarantine %s: %w", f.Name, err)
	}
	out.MovedTo = dst
	r.log.Warn("unknown file quarantined", zap.String("file", f.Name), zap.String("moved_to", dst))
	return out, nil
}

// SetAside moves a file that failed to load into the failed directory.
func (r *Router) SetAside(f StagedFile) (string, error) {
	return moveInto(f.Path, r.opts.FailedDir)
}

// Dispatch loads the decoded contents of a catalog or sales file.
func (r *Router) Dispatch(ctx context.Context, f StagedFile, data []byte) (report.FileOutcome, error) {
	switch f.Kind {
	case report.KindCatalog:
		return r.loadCatalog(ctx, f, data)
	case report.KindSales:
		return r.loadSales(ctx, f, data)
	default:
		return report.FileOutcome{Name: f.Name, Kind: f.Kind}, fmt.Errorf("dispatch %s: no loader for kind %q", f.Name, f.Kind)
	}
}

func (r *Router) loadCatalog(ctx context.Context, f StagedFile, data []byte) (report.FileOutcome, error) {
	out := report.FileOutcome{Name: f.Name, Kind: f.Kind}

	var products []record.Product
	var err error
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".jsonl", ".ndjson":
		products, err = decodeCatalogLines(data)
	default:
		products, err = decodeCatalog(data)
	}
	if err != nil {
		return out, err
	}
	out.RowsRead = len(products)

	res, err := r.products.Load(ctx, products)
	out.RowsLoaded = res.Rows
	out.Batches = res.Batches
	if err != nil {
		return out, err
	}
	out.Status = report.FileLoaded
	return out, nil
}

func (r *Router) loadSales(ctx context.Context, f StagedFile, data []byte) (report.FileOutcome, error) {
	out := report.FileOutcome{Name: f.Name, Kind: f.Kind}

	comma := ','
	if strings.EqualFold(filepath.Ext(f.Name), ".tsv") {
		comma = '\t'
	}

	var rejects *rejectsWriter
	if r.opts.WriteRejects {
		rejects = newRejectsWriter(r.opts.RejectsDir, f.Name)
	}

	read, err := readSales(data, comma, r.opts.ReadChunkSize, func(chunk []record.Sale) error {
		res, err := r.sales.Load(ctx, chunk)
		out.RowsLoaded += res.Inserted
		out.RowsDropped += len(res.Dropped)
		out.Batches = append(out.Batches, res.Batches...)
		if rejects != nil {
			if werr := rejects.Write(res.Dropped, rejectReason); werr != nil {
				r.log.Warn("writing rejects failed", zap.String("file", f.Name), zap.Error(werr))
			}
		}
		return err
	})
	out.RowsRead = read

	if rejects != nil {
		path, cerr := rejects.Close()
		if cerr != nil {
			r.log.Warn("closing rejects failed", zap.String("file", f.Name), zap.Error(cerr))
		}
		out.RejectsFile = path
	}
	if err != nil {
		return out, err
	}
	if out.RowsDropped > 0 {
		r.log.Info("sales rows dropped for unknown products",
			zap.String("file", f.Name),
			zap.Int("dropped", out.RowsDropped),
		)
	}
	out.Status = report.FileLoaded
	return out, nil
}
