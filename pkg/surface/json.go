package surface

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/silverlake/silverlake/pkg/report"
)

// JSONRenderer marshals RunReport to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, rep *report.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
