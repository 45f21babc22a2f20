package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/silverlake/silverlake/pkg/report"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want report.FileKind
	}{
		{"sales_data_2024-06-01.csv", report.KindSales},
		{"SALES.CSV", report.KindSales},
		{"sales.tsv", report.KindSales},
		{"product_info_2024-06-01.json", report.KindCatalog},
		{"products.jsonl", report.KindCatalog},
		{"products.ndjson", report.KindCatalog},
		{"readme.xyz", report.KindUnknown},
		{"archive.csv.gz", report.KindUnknown},
		{"noextension", report.KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRouterScanOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"sales_data_2024-06-02.csv",
		"zzz.xyz",
		"sales_data_2024-06-01.csv",
		"product_info_2024-06-02.json",
		"product_info_2024-06-01.json",
		".hidden.csv",
	} {
		writeFile(t, dir, name, "")
	}
	if err := os.Mkdir(filepath.Join(dir, "unknown_files"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRouter(nil, nil, RouterOptions{StagingDir: dir}, nil)
	files, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		"product_info_2024-06-01.json",
		"product_info_2024-06-02.json",
		"sales_data_2024-06-01.csv",
		"sales_data_2024-06-02.csv",
		"zzz.xyz",
	}
	if len(files) != len(want) {
		t.Fatalf("Scan returned %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, f := range files {
		if f.Name != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestRouterQuarantine(t *testing.T) {
	dir := t.TempDir()
	quarantine := filepath.Join(dir, "unknown_files")
	r := NewRouter(nil, nil, RouterOptions{StagingDir: dir, QuarantineDir: quarantine}, nil)

	// A previously quarantined file of the same name is kept.
	if err := os.MkdirAll(quarantine, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, quarantine, "report.xyz", "old")
	path := writeFile(t, dir, "report.xyz", "new")

	out, err := r.Quarantine(StagedFile{Name: "report.xyz", Path: path, Kind: report.KindUnknown})
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}
	if out.Status != report.FileQuarantined {
		t.Errorf("Status = %q, want quarantined", out.Status)
	}
	if want := filepath.Join(quarantine, "report-1.xyz"); out.MovedTo != want {
		t.Errorf("MovedTo = %q, want %q", out.MovedTo, want)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still in staging")
	}
	old, _ := os.ReadFile(filepath.Join(quarantine, "report.xyz"))
	if string(old) != "old" {
		t.Errorf("existing quarantined file overwritten: %q", old)
	}
}
