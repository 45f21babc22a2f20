package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/silverlake/silverlake/internal/store"
	"github.com/silverlake/silverlake/internal/store/storetest"
	"github.com/silverlake/silverlake/pkg/config"
	"github.com/silverlake/silverlake/pkg/report"
)

const catalogJSON = `[
  {"product_id": "P001", "product_name": "Product 1", "category": "Electronics"},
  {"product_id": "P002", "product_name": "Product 2", "category": "Clothing"},
  {"product_id": "P003", "product_name": "Product 3", "category": "Books"},
  {"product_id": "P004", "product_name": "Product 4", "category": "Electronics"}
]`

const salesCSV = `product_id,sale_date,quantity,price
P001,2024-06-01,2,19.99
P002,2024-06-01,1,N/A
P003,not-a-date,3,5.00
P999,2024-06-01,1,42.00
`

type fixture struct {
	st      *store.Store
	staging string
	cfg     *config.Config
	metrics *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Staging.Dir = t.TempDir()
	return &fixture{
		st:      storetest.New(t),
		staging: cfg.Staging.Dir,
		cfg:     cfg,
		metrics: NewMetrics(),
	}
}

func (f *fixture) service(t *testing.T) *Service {
	return NewService(f.st, OptionsFromConfig(f.cfg), zaptest.NewLogger(t), f.metrics)
}

func (f *fixture) stage(t *testing.T, name, content string) {
	t.Helper()
	writeFile(t, f.staging, name, content)
}

func count(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	n, err := st.CountRows(context.Background(), table)
	require.NoError(t, err)
	return n
}

func TestRun_LoadsStagingDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	f.stage(t, "sales_data_2024-06-01.csv", salesCSV)
	f.stage(t, "notes.xyz", "not an extract")

	rep, err := f.service(t).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, report.StatusCompleted, rep.Status)
	assert.Equal(t, report.Totals{
		FilesLoaded:       2,
		FilesQuarantined:  1,
		ProductsUpserted:  4,
		CategoriesCreated: 3,
		SalesInserted:     3,
		SalesDropped:      1,
	}, rep.Totals)

	// Catalog first, then sales, then the unknown file.
	require.Len(t, rep.Files, 3)
	assert.Equal(t, report.KindCatalog, rep.Files[0].Kind)
	assert.Equal(t, report.KindSales, rep.Files[1].Kind)
	assert.Equal(t, report.FileQuarantined, rep.Files[2].Status)

	assert.Equal(t, 3, count(t, f.st, "categories"))
	assert.Equal(t, 4, count(t, f.st, "products"))
	assert.Equal(t, 3, count(t, f.st, "sales"))

	// Unknown file moved out of staging.
	_, err = os.Stat(filepath.Join(f.staging, "notes.xyz"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(f.staging, "unknown_files", "notes.xyz"))
	assert.NoError(t, err)

	// Fallbacks stored as defaults.
	var price float64
	require.NoError(t, f.st.DB().QueryRowContext(ctx, `SELECT price FROM sales WHERE product_id = 'P002'`).Scan(&price))
	assert.Equal(t, 0.0, price)
	var date sql.NullString
	require.NoError(t, f.st.DB().QueryRowContext(ctx, `SELECT sale_date FROM sales WHERE product_id = 'P003'`).Scan(&date))
	assert.False(t, date.Valid)

	// Dropped row written to the rejects file with its cleaned values.
	rejects, err := os.ReadFile(filepath.Join(f.staging, "rejected", "sales_data_2024-06-01.csv.rejected.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(rejects), "unknown product_id,P999,2024-06-01,1,42")

	for _, idx := range store.SalesIndexes {
		ok, err := f.st.IndexExists(ctx, idx.Name)
		require.NoError(t, err)
		assert.True(t, ok, idx.Name)
	}
	assert.Len(t, rep.Indexes, 3)

	runs, err := f.st.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].RunID)
	assert.Equal(t, report.StatusCompleted, runs[0].Status)
	assert.Equal(t, 3, count(t, f.st, "file_loads"))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.filesTotal.WithLabelValues("sales", "loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.rowsTotal.WithLabelValues("sales", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.filesTotal.WithLabelValues("unknown", "quarantined")))
}

func TestRun_ReprocessIsIdempotentForProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	f.stage(t, "product_info_2024-06-02.json", `[{"product_id": "P005", "product_name": "Product 5", "category": "Electronics"}]`)
	f.stage(t, "sales_data_2024-06-01.csv", salesCSV)

	for i := 0; i < 2; i++ {
		_, err := f.service(t).Run(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 5, count(t, f.st, "products"))
	assert.Equal(t, 3, count(t, f.st, "categories"))
	// Sales are append-only; a second run over the same file appends again.
	assert.Equal(t, 6, count(t, f.st, "sales"))
}

func TestRun_RejectsFileKeepsEarlierRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	f.stage(t, "sales_data_2024-06-01.csv", salesCSV)

	first, err := f.service(t).Run(ctx)
	require.NoError(t, err)
	second, err := f.service(t).Run(ctx)
	require.NoError(t, err)

	rejected := filepath.Join(f.staging, "rejected")
	assert.Equal(t, filepath.Join(rejected, "sales_data_2024-06-01.csv.rejected.csv"), first.Files[1].RejectsFile)
	assert.Equal(t, filepath.Join(rejected, "sales_data_2024-06-01.csv.rejected-1.csv"), second.Files[1].RejectsFile)

	for _, path := range []string{first.Files[1].RejectsFile, second.Files[1].RejectsFile} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "unknown product_id,P999,2024-06-01,1,42")
	}
}

func TestRun_SkipLoadedFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Load.SkipLoadedFiles = true
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	f.stage(t, "sales_data_2024-06-01.csv", salesCSV)

	_, err := f.service(t).Run(ctx)
	require.NoError(t, err)
	rep, err := f.service(t).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Totals.FilesSkipped)
	assert.Equal(t, 0, rep.Totals.FilesLoaded)
	assert.Equal(t, 3, count(t, f.st, "sales"))
}

func TestRun_MalformedFileIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	f.stage(t, "product_info_2024-06-02.json", `[{"product_id": "P009",`)
	f.stage(t, "sales_data_2024-06-01.csv", salesCSV)

	rep, err := f.service(t).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPartial, rep.Status)
	assert.Equal(t, 1, rep.Totals.FilesFailed)
	assert.Equal(t, 2, rep.Totals.FilesLoaded)

	failed := rep.Files[1]
	assert.Equal(t, "product_info_2024-06-02.json", failed.Name)
	assert.Equal(t, report.FileFailed, failed.Status)
	assert.Contains(t, failed.Error, "malformed extract")
	_, err = os.Stat(filepath.Join(f.staging, "failed_files", "product_info_2024-06-02.json"))
	assert.NoError(t, err)

	// The good files still loaded.
	assert.Equal(t, 4, count(t, f.st, "products"))
	assert.Equal(t, 3, count(t, f.st, "sales"))
}

func TestRun_FailFast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Load.FailFast = true
	f.stage(t, "product_info_2024-06-01.json", `not json`)
	f.stage(t, "sales_data_2024-06-01.csv", salesCSV)

	rep, err := f.service(t).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedExtract))
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Len(t, rep.Files, 1, "sales file should not be attempted")

	runs, err := f.st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestRun_AbortedRunReportsCreatedCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Load.FailFast = true
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	f.stage(t, "product_info_2024-06-02.json", `{broken`)

	rep, err := f.service(t).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Equal(t, 3, rep.Totals.CategoriesCreated)
	assert.Equal(t, 3, count(t, f.st, "categories"))
}

func TestRun_LeaseHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)

	other, err := f.st.AcquireLease(ctx, f.cfg.Lease.Name, "other-run", time.Hour)
	require.NoError(t, err)

	rep, err := f.service(t).Run(ctx)
	assert.True(t, errors.Is(err, store.ErrLeaseHeld), "got %v", err)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Equal(t, 0, count(t, f.st, "products"))
	assert.Equal(t, 0, count(t, f.st, "pipeline_runs"))

	// Once released, the next run proceeds and releases the lease itself.
	require.NoError(t, other.Release(ctx))
	_, err = f.service(t).Run(ctx)
	require.NoError(t, err)
	_, err = f.st.AcquireLease(ctx, f.cfg.Lease.Name, "third-run", time.Hour)
	assert.NoError(t, err)
}

func TestRun_BatchBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.cfg.Load.BatchSize + 1

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"product_id":"P%05d","product_name":"Product %d","category":"Home"}`, i, i)
	}
	sb.WriteString("]")
	f.stage(t, "product_info_2024-06-01.json", sb.String())

	rep, err := f.service(t).Run(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, []int{f.cfg.Load.BatchSize, 1}, rep.Files[0].Batches)
	assert.Equal(t, n, count(t, f.st, "products"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.batchesTotal.WithLabelValues("products")))
	assert.Equal(t, float64(n), testutil.ToFloat64(f.metrics.batchRows.WithLabelValues("products")))
}

func TestRun_EmptyStaging(t *testing.T) {
	f := newFixture(t)
	rep, err := f.service(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.StatusCompleted, rep.Status)
	assert.Empty(t, rep.Files)
}

func TestRun_MissingStagingDir(t *testing.T) {
	f := newFixture(t)
	f.cfg.Staging.Dir = filepath.Join(f.staging, "does-not-exist")
	rep, err := f.service(t).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, report.StatusFailed, rep.Status)
}

func TestWriteTextfile(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "product_info_2024-06-01.json", catalogJSON)
	_, err := f.service(t).Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "silverlake.prom")
	require.NoError(t, f.metrics.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `silverlake_files_total{kind="catalog",status="loaded"} 1`)
}
