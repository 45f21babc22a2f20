package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/silverlake/silverlake/pkg/report"
)

// TerminalRenderer renders RunReport as colored terminal output.
type TerminalRenderer struct{}

func statusAttrs(status string) []color.Attribute {
	switch status {
	case report.StatusCompleted, string(report.FileLoaded):
		return []color.Attribute{color.FgGreen}
	case report.StatusPartial, string(report.FileQuarantined), string(report.FileSkipped):
		return []color.Attribute{color.FgYellow}
	case report.StatusFailed, string(report.FileFailed):
		return []color.Attribute{color.FgRed}
	default:
		return nil
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func paint(s string, attrs ...color.Attribute) string {
	if noColor() || len(attrs) == 0 {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func bold(s string) string { return paint(s, color.Bold) }

func dim(s string) string { return paint(s, color.Faint) }

func (r *TerminalRenderer) Render(w io.Writer, rep *report.RunReport) error {
	// Header
	fmt.Fprintf(w, "%s\n",
		bold(fmt.Sprintf("silverlake run %s: %s", rep.RunID, paint(rep.Status, statusAttrs(rep.Status)...))))
	fmt.Fprintf(w, "%s\n\n", dim(fmt.Sprintf("staging %s, %s", rep.StagingDir, rep.Duration().Round(1e6))))

	// Files
	if len(rep.Files) == 0 {
		fmt.Fprintln(w, "No staged files.")
		fmt.Fprintln(w)
	} else {
		width := len("FILE")
		for _, f := range rep.Files {
			width = max(width, len(f.Name))
		}
		fmt.Fprintf(w, "%-*s  %-8s  %-11s  %7s  %7s  %7s\n", width, "FILE", "KIND", "STATUS", "READ", "LOADED", "DROPPED")
		for _, f := range rep.Files {
			status := fmt.Sprintf("%-11s", f.Status)
			fmt.Fprintf(w, "%-*s  %-8s  %s  %7d  %7d  %7d\n",
				width, f.Name, f.Kind, paint(status, statusAttrs(string(f.Status))...),
				f.RowsRead, f.RowsLoaded, f.RowsDropped)
			if f.Error != "" {
				fmt.Fprintf(w, "  %s %s\n", paint("!", color.FgRed), f.Error)
			}
			if f.MovedTo != "" {
				fmt.Fprintf(w, "  %s\n", dim("moved to "+f.MovedTo))
			}
			if f.RejectsFile != "" {
				fmt.Fprintf(w, "  %s\n", dim("rejects in "+f.RejectsFile))
			}
		}
		fmt.Fprintln(w)
	}

	// Totals
	t := rep.Totals
	fmt.Fprintf(w, "Files: %d loaded / %d quarantined / %d failed / %d skipped\n",
		t.FilesLoaded, t.FilesQuarantined, t.FilesFailed, t.FilesSkipped)
	fmt.Fprintf(w, "Products upserted: %d (%d new categories)\n", t.ProductsUpserted, t.CategoriesCreated)
	fmt.Fprintf(w, "Sales inserted: %d, dropped: %d\n", t.SalesInserted, t.SalesDropped)
	if len(rep.Indexes) > 0 {
		fmt.Fprintf(w, "Indexes: %s\n", strings.Join(rep.Indexes, ", "))
	}

	if rep.Error != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", paint("Error:", color.FgRed, color.Bold), rep.Error)
	}
	return nil
}
