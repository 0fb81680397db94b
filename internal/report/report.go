// Package report writes the per-entity CSV report of a run.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/dpolishuk/docweave/internal/store"
)

// Header is the first row of every report.
var Header = []string{"path", "function", "documentation", "shortened documentation", "code_before", "code_after"}

// Write emits one row per custom entity of st, in store order.
func Write(w io.Writer, st *store.Store) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, e := range st.Custom() {
		row := []string{e.SourcePath, e.Name, e.Documentation, e.DocumentationShort, e.Code, e.CodeNew}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write report row for %s: %w", e.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, replacing any existing file.
func WriteFile(path string, st *store.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Write(f, st); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
