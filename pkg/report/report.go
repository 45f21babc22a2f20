// Package report describes the outcome of one pipeline run: what happened
// to each staged file and the totals across the run.
package report

import "time"

// Run statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusPartial   = "PARTIAL" // finished, but at least one file failed
	StatusFailed    = "FAILED"
)

// FileKind classifies a staged file.
type FileKind string

const (
	KindCatalog FileKind = "catalog"
	KindSales   FileKind = "sales"
	KindUnknown FileKind = "unknown"
)

// FileStatus is the outcome of one staged file.
type FileStatus string

const (
	FileLoaded      FileStatus = "loaded"
	FileQuarantined FileStatus = "quarantined"
	FileFailed      FileStatus = "failed"
	FileSkipped     FileStatus = "skipped"
)

// FileOutcome records what happened to one staged file.
type FileOutcome struct {
	Name        string        `json:"name"`
	Kind        FileKind      `json:"kind"`
	Status      FileStatus    `json:"status"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	RowsRead    int           `json:"rows_read"`
	RowsLoaded  int           `json:"rows_loaded"`
	RowsDropped int           `json:"rows_dropped"`
	Batches     []int         `json:"batches,omitempty"`
	MovedTo     string        `json:"moved_to,omitempty"`
	RejectsFile string        `json:"rejects_file,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// Totals aggregates file outcomes.
type Totals struct {
	FilesLoaded       int `json:"files_loaded"`
	FilesQuarantined  int `json:"files_quarantined"`
	FilesFailed       int `json:"files_failed"`
	FilesSkipped      int `json:"files_skipped"`
	ProductsUpserted  int `json:"products_upserted"`
	CategoriesCreated int `json:"categories_created"`
	SalesInserted     int `json:"sales_inserted"`
	SalesDropped      int `json:"sales_dropped"`
}

// RunReport is the result of one pipeline invocation.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Status     string        `json:"status"`
	StagingDir string        `json:"staging_dir"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Files      []FileOutcome `json:"files"`
	Totals     Totals        `json:"totals"`
	Indexes    []string      `json:"indexes,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Add appends a file outcome and folds it into the totals.
func (r *RunReport) Add(o FileOutcome) {
	r.Files = append(r.Files, o)
	switch o.Status {
	case FileLoaded:
		r.Totals.FilesLoaded++
	case FileQuarantined:
		r.Totals.FilesQuarantined++
	case FileFailed:
		r.Totals.FilesFailed++
	case FileSkipped:
		r.Totals.FilesSkipped++
	}
	switch o.Kind {
	case KindCatalog:
		r.Totals.ProductsUpserted += o.RowsLoaded
	case KindSales:
		r.Totals.SalesInserted += o.RowsLoaded
		r.Totals.SalesDropped += o.RowsDropped
	}
}

// Settle sets the final status from err and the file outcomes.
func (r *RunReport) Settle(err error, finishedAt time.Time) {
	r.FinishedAt = finishedAt
	switch {
	case err != nil:
		r.Status = StatusFailed
		r.Error = err.Error()
	case r.Totals.FilesFailed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusCompleted
	}
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
