package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/silverlake/silverlake/pkg/record"
)

// moveInto moves src into dir, creating dir as needed. An existing file
// of the same name is kept; the moved file gets a numeric suffix instead.
func moveInto(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	dst := freeName(dir, filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		// Rename fails across filesystems; fall back to copy and remove.
		if cerr := copyFile(src, dst); cerr != nil {
			return "", fmt.Errorf("move %s: %w", filepath.Base(src), err)
		}
		if rerr := os.Remove(src); rerr != nil {
			return dst, fmt.Errorf("remove %s after copy: %w", filepath.Base(src), rerr)
		}
	}
	return dst, nil
}

func freeName(dir, base string) string {
	dst := filepath.Join(dir, base)
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return dst
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		dst = filepath.Join(dir, stem+"-"+strconv.Itoa(i)+ext)
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			return dst
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// rejectsWriter collects sales rows dropped for unknown products into a
// CSV next to the staging area. The file is created on the first write;
// rejects from an earlier run of the same file are kept and the new file
// gets a numeric suffix.
type rejectsWriter struct {
	dir  string
	base string
	path string
	f    *os.File
	w    *csv.Writer
	rows int
}

func newRejectsWriter(dir, source string) *rejectsWriter {
	return &rejectsWriter{dir: dir, base: filepath.Base(source) + ".rejected.csv"}
}

func (rw *rejectsWriter) Write(rows []record.Sale, reason string) error {
	if len(rows) == 0 {
		return nil
	}
	if rw.f == nil {
		if err := os.MkdirAll(rw.dir, 0o755); err != nil {
			return fmt.Errorf("create rejects directory: %w", err)
		}
		path := freeName(rw.dir, rw.base)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("create rejects file: %w", err)
		}
		rw.path = path
		rw.f = f
		rw.w = csv.NewWriter(f)
		if err := rw.w.Write([]string{"reason", record.FieldProductID, record.FieldSaleDate, record.FieldQuantity, record.FieldPrice}); err != nil {
			return fmt.Errorf("write rejects header: %w", err)
		}
	}
	for _, s := range rows {
		err := rw.w.Write([]string{
			reason,
			s.ProductID,
			s.SaleDate.String(),
			strconv.Itoa(s.Quantity),
			strconv.FormatFloat(s.Price, 'f', -1, 64),
		})
		if err != nil {
			return fmt.Errorf("write rejects: %w", err)
		}
	}
	rw.rows += len(rows)
	return nil
}

// Close flushes the file and returns its path, or "" if nothing was written.
func (rw *rejectsWriter) Close() (string, error) {
	if rw.f == nil {
		return "", nil
	}
	rw.w.Flush()
	if err := rw.w.Error(); err != nil {
		rw.f.Close()
		return rw.path, fmt.Errorf("flush rejects: %w", err)
	}
	return rw.path, rw.f.Close()
}
