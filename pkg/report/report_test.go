package report

import (
	"errors"
	"testing"
	"time"
)

func TestRunReport_AddAndSettle(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &RunReport{StartedAt: start}
	r.Add(FileOutcome{Name: "product_info_2024-06-01.json", Kind: KindCatalog, Status: FileLoaded, RowsRead: 20, RowsLoaded: 20})
	r.Add(FileOutcome{Name: "sales_data_2024-06-01.csv", Kind: KindSales, Status: FileLoaded, RowsRead: 100, RowsLoaded: 97, RowsDropped: 3})
	r.Add(FileOutcome{Name: "notes.xyz", Kind: KindUnknown, Status: FileQuarantined})

	r.Settle(nil, start.Add(time.Second))
	if r.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", r.Status, StatusCompleted)
	}
	want := Totals{FilesLoaded: 2, FilesQuarantined: 1, ProductsUpserted: 20, SalesInserted: 97, SalesDropped: 3}
	if r.Totals != want {
		t.Errorf("Totals = %+v, want %+v", r.Totals, want)
	}
	if r.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", r.Duration())
	}

	r.Add(FileOutcome{Name: "broken.json", Kind: KindCatalog, Status: FileFailed})
	r.Settle(nil, start.Add(time.Second))
	if r.Status != StatusPartial {
		t.Errorf("Status = %q, want %q", r.Status, StatusPartial)
	}

	r.Settle(errors.New("store unreachable"), start.Add(time.Second))
	if r.Status != StatusFailed || r.Error != "store unreachable" {
		t.Errorf("Status, Error = %q, %q", r.Status, r.Error)
	}
}
