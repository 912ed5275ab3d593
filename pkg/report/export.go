package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"pathworks.io/netmirror/pkg/planner"
	"pathworks.io/netmirror/pkg/util"
)

// planExport is the on-disk JSON shape of an exported plan.
type planExport struct {
	GeneratedUTC time.Time    `json:"generatedUTC"`
	Source       string       `json:"source"`
	Destination  string       `json:"destination"`
	Summary      Summary      `json:"summary"`
	Items        []exportItem `json:"items"`
}

type exportItem struct {
	Action string `json:"action"`
	Rel    string `json:"rel"`
	Reason string `json:"reason"`
}

// WritePlanFile exports a plan as JSON. The extension selects the encoding:
// ".gz" and ".zst" compress, anything else is written as plain JSON.
func WritePlanFile(path, srcRoot, dstRoot string, items []planner.Item) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, util.UserWritableFilePerms)
	if err != nil {
		return fmt.Errorf("could not create plan file %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var closeCompressor func() error

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := pgzip.NewWriter(f)
		w = gz
		closeCompressor = gz.Close
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("could not create zstd writer: %w", err)
		}
		w = enc
		closeCompressor = enc.Close
	}

	export := planExport{
		GeneratedUTC: time.Now().UTC(),
		Source:       srcRoot,
		Destination:  dstRoot,
		Summary:      Summarize(items),
		Items:        make([]exportItem, 0, len(items)),
	}
	for _, it := range items {
		export.Items = append(export.Items, exportItem{
			Action: it.Action.String(),
			Rel:    it.Rel,
			Reason: it.Reason,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("could not encode plan: %w", err)
	}

	if closeCompressor != nil {
		if err := closeCompressor(); err != nil {
			return fmt.Errorf("could not finalize compressed plan: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close plan file: %w", err)
	}
	return nil
}
