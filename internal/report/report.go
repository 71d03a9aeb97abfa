// Package report renders a batch run as artifacts: the canonical JSON
// document and an optional one-page PDF summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MeatBorsa/mailflow/internal/batch"
)

// WriteJSON writes the batch report as indented JSON. An empty path or "-"
// writes to stdout.
func WriteJSON(r batch.Report, path string) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	raw = append(raw, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(raw)
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
