package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Mschirtzinger/bugledger/internal/present"
)

// Output formats accepted by WriteView.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatJSON, FormatYAML}

// WriteView writes v to w in the given format.
func WriteView(w io.Writer, format string, v present.View) error {
	switch format {
	case FormatTable, "":
		if len(v.Rows) == 0 {
			_, err := fmt.Fprintln(w, RenderMuted("No bugs"))
			return err
		}
		_, err := fmt.Fprintf(w, "%s\n%s\n", RenderTable(v), RenderSummary(v))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want one of %v)", format, Formats)
	}
}
