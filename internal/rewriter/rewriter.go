// Package rewriter splices verified documented code back into source files.
package rewriter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/store"
)

// Result summarizes a rewrite pass.
type Result struct {
	FilesChanged []string
	Replacements int
	Skipped      []string
}

type Rewriter struct {
	log    *logger.Logger
	dryRun bool
}

// New returns a Rewriter. With dryRun set, new file contents are computed
// and counted but never written.
func New(log *logger.Logger, dryRun bool) *Rewriter {
	return &Rewriter{log: log, dryRun: dryRun}
}

// Rewrite updates every file in files that holds documented entities of st.
func (r *Rewriter) Rewrite(files []string, st *store.Store) (*Result, error) {
	byPath := make(map[string][]*models.Entity)
	for _, e := range st.Documented() {
		if e.CodeNew != models.None {
			byPath[e.SourcePath] = append(byPath[e.SourcePath], e)
		}
	}

	result := &Result{}
	for _, path := range files {
		entities := byPath[path]
		if len(entities) == 0 {
			continue
		}
		r.log.Info("Replacing definitions", "path", path, "entities", len(entities))

		changed, n, skipped, err := r.rewriteFile(path, entities)
		if err != nil {
			return result, err
		}
		result.Replacements += n
		result.Skipped = append(result.Skipped, skipped...)
		if changed {
			result.FilesChanged = append(result.FilesChanged, path)
		}
	}
	return result, nil
}

func (r *Rewriter) rewriteFile(path string, entities []*models.Entity) (bool, int, []string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, 0, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, n, skipped := RewriteSource(string(content), entities)
	for _, name := range skipped {
		r.log.Warn("Original code not found, skipping", "entity", name, "path", path)
	}
	if text == string(content) {
		return false, n, skipped, nil
	}
	if r.dryRun {
		r.log.Info("Dry run, not writing", "path", path, "replacements", n)
		return true, n, skipped, nil
	}
	if err := writeAtomic(path, []byte(text)); err != nil {
		return false, n, skipped, err
	}
	return true, n, skipped, nil
}

// RewriteSource applies the documented code of entities to src in memory.
// Deeper definitions go first, then functions and methods before classes,
// so that a container whose original text no longer matches falls back to
// replacing its header. Each splice lands on the occurrence nearest the
// entity's recorded offset. It returns the new text, the number of
// replacements and the entities it could not place.
func RewriteSource(src string, entities []*models.Entity) (string, int, []string) {
	ordered := make([]*models.Entity, len(entities))
	copy(ordered, entities)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := depth(ordered[i].Name), depth(ordered[j].Name)
		if di != dj {
			return di > dj
		}
		ci, cj := ordered[i].Type == models.EntityClass, ordered[j].Type == models.EntityClass
		if ci != cj {
			return cj
		}
		return ordered[i].Name < ordered[j].Name
	})

	var applied []edit
	replaced := 0
	var skipped []string
	for _, e := range ordered {
		old, repl := e.Code, e.CodeNew
		at := -1
		if old != models.None {
			at = nearest(src, old, shifted(e.Offset, applied))
		}
		if at < 0 && e.Header != models.None && e.HeaderNew != models.None {
			old, repl = e.Header, e.HeaderNew
			at = nearest(src, old, shifted(e.Offset, applied))
		}
		if at < 0 {
			skipped = append(skipped, e.Name)
			continue
		}
		src = src[:at] + repl + src[at+len(old):]
		if e.Offset >= 0 {
			applied = append(applied, edit{offset: e.Offset, delta: len(repl) - len(old)})
		}
		replaced++
	}
	return src, replaced, skipped
}

// edit is a splice already applied, keyed by its offset in the original file.
type edit struct {
	offset int
	delta  int
}

func depth(name string) int {
	return strings.Count(name, ".")
}

// shifted maps an offset in the original file into the current text.
func shifted(offset int, applied []edit) int {
	if offset < 0 {
		return -1
	}
	out := offset
	for _, ed := range applied {
		if ed.offset < offset {
			out += ed.delta
		}
	}
	return out
}

// nearest returns the index of the occurrence of sub in s closest to want,
// the first one when want is unknown, or -1.
func nearest(s, sub string, want int) int {
	best := -1
	if sub == "" {
		return best
	}
	for from := 0; from <= len(s)-len(sub); {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			break
		}
		i += from
		if want < 0 {
			return i
		}
		if best < 0 || abs(i-want) < abs(best-want) {
			best = i
		}
		from = i + 1
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// writeAtomic replaces path with data through a temporary file in the same
// directory, keeping the original permissions.
func writeAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set mode on %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
