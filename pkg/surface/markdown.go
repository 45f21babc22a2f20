package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/silverlake/silverlake/pkg/report"
)

// MarkdownRenderer renders a RunReport as a Markdown summary suitable for
// chat notifications or CI job summaries.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, rep *report.RunReport) error {
	_, err := io.WriteString(w, BuildMarkdownSummary(rep))
	return err
}

// BuildMarkdownSummary formats the report. At most maxFiles file rows are
// listed; problem files are listed first.
func BuildMarkdownSummary(rep *report.RunReport) string {
	const maxFiles = 20
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## silverlake run %s: %s %s\n\n", rep.RunID, statusIcon(rep.Status), rep.Status))

	t := rep.Totals
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Files loaded | %d |\n", t.FilesLoaded))
	sb.WriteString(fmt.Sprintf("| Files quarantined | %d |\n", t.FilesQuarantined))
	sb.WriteString(fmt.Sprintf("| Files failed | %d |\n", t.FilesFailed))
	sb.WriteString(fmt.Sprintf("| Files skipped | %d |\n", t.FilesSkipped))
	sb.WriteString(fmt.Sprintf("| Products upserted | %d |\n", t.ProductsUpserted))
	sb.WriteString(fmt.Sprintf("| Sales inserted | %d |\n", t.SalesInserted))
	sb.WriteString(fmt.Sprintf("| Sales dropped | %d |\n", t.SalesDropped))
	sb.WriteString("\n")

	if len(rep.Files) > 0 {
		files := make([]report.FileOutcome, 0, len(rep.Files))
		for _, f := range rep.Files {
			if f.Status != report.FileLoaded {
				files = append(files, f)
			}
		}
		for _, f := range rep.Files {
			if f.Status == report.FileLoaded {
				files = append(files, f)
			}
		}

		sb.WriteString("### Files\n\n")
		for i, f := range files {
			if i == maxFiles {
				sb.WriteString(fmt.Sprintf("_... and %d more files_\n", len(files)-maxFiles))
				break
			}
			sb.WriteString(fmt.Sprintf("- %s `%s` (%s): %d read, %d loaded, %d dropped\n",
				statusIcon(string(f.Status)), f.Name, f.Kind, f.RowsRead, f.RowsLoaded, f.RowsDropped))
			if f.Error != "" {
				sb.WriteString(fmt.Sprintf("  - %s\n", f.Error))
			}
		}
		sb.WriteString("\n")
	}

	if rep.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", rep.Error))
	}
	return sb.String()
}

func statusIcon(status string) string {
	switch status {
	case report.StatusCompleted, string(report.FileLoaded):
		return ":green_circle:"
	case report.StatusPartial, string(report.FileQuarantined), string(report.FileSkipped):
		return ":yellow_circle:"
	case report.StatusFailed, string(report.FileFailed):
		return ":red_circle:"
	default:
		return ":blue_circle:"
	}
}
