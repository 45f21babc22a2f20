// Package surface defines output rendering for pipeline run reports.
// Implementations handle different output targets: terminal, JSON, Markdown.
package surface

import (
	"fmt"
	"io"

	"github.com/silverlake/silverlake/pkg/report"
)

// Renderer produces formatted output from a RunReport.
type Renderer interface {
	// Render writes the formatted run report to the writer.
	Render(w io.Writer, rep *report.RunReport) error
}

// ForFormat returns the renderer for an --output value.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}
