// Package refdoc resolves documentation for external symbols that project
// code calls. Python reflection is not available, so docstrings are read
// once at startup into a symbol table.
package refdoc

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolver returns the docstring for a dotted name, if one is known.
type Resolver interface {
	ResolveDoc(name string) (string, bool)
}

//go:embed builtins.yaml
var builtinsYAML []byte

// Table is a precomputed symbol-to-docstring map.
type Table struct {
	docs map[string]string
}

func NewTable() *Table {
	return &Table{docs: make(map[string]string)}
}

// Set records doc for name. Blank docs are ignored so that they never
// shadow a shorter suffix during lookup.
func (t *Table) Set(name, doc string) {
	if strings.TrimSpace(doc) == "" || name == "" {
		return
	}
	t.docs[name] = doc
}

func (t *Table) Len() int {
	return len(t.docs)
}

// ResolveDoc tries name, then each shorter trailing suffix of its dotted
// segments, returning the first documented match.
func (t *Table) ResolveDoc(name string) (string, bool) {
	parts := strings.Split(name, ".")
	for i := range parts {
		if doc, ok := t.docs[strings.Join(parts[i:], ".")]; ok {
			return doc, true
		}
	}
	return "", false
}

// LoadYAML merges a YAML mapping of dotted name to docstring.
func (t *Table) LoadYAML(r io.Reader) error {
	var entries map[string]string
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode reference table: %w", err)
	}
	for name, doc := range entries {
		t.Set(name, strings.TrimSpace(doc))
	}
	return nil
}
