// Package export renders run inputs as JSON for tooling.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/qacheck/internal/files"
)

// ResolutionExport is the top-level JSON form of a file resolution.
type ResolutionExport struct {
	Policy      string        `json:"policy"`
	GeneratedAt string        `json:"generatedAt"`
	Groups      []GroupExport `json:"groups"`
}

// GroupExport lists the files claimed by one pattern group.
type GroupExport struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// Resolution builds a ResolutionExport with groups in declaration order.
// Groups that matched nothing are listed with an empty file list.
func Resolution(res files.Resolution) *ResolutionExport {
	out := &ResolutionExport{
		Policy:      res.Policy().String(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Groups:      []GroupExport{},
	}
	for _, name := range res.Groups() {
		out.Groups = append(out.Groups, GroupExport{Name: name, Files: res.Files(name)})
	}
	return out
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}
