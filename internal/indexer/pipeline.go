package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/store"
	"github.com/dpolishuk/docweave/pkg/treesitter"
)

type Pipeline struct {
	extractor *Extractor
	log       *logger.Logger
}

type IndexResult struct {
	Store          *store.Store
	Imports        []models.Import
	Files          []string
	FilesProcessed int
	Errors         []string
}

func NewPipeline(log *logger.Logger) *Pipeline {
	return &Pipeline{
		extractor: NewExtractor(),
		log:       log,
	}
}

func (p *Pipeline) Close() {
	p.extractor.Close()
}

// Collect extracts every definition and import under path into a new store.
// Files are processed one at a time in lexical order.
func (p *Pipeline) Collect(ctx context.Context, path string) (*IndexResult, error) {
	files, err := SourceFiles(path)
	if err != nil {
		return nil, err
	}

	result := &IndexResult{
		Store: store.New(),
		Files: files,
	}
	imports := make(map[string]models.Import)
	definedIn := make(map[string]string)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.log.Info("Extracting dependencies", "path", file)

		fr, err := p.processFile(ctx, file, result.Store)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file, err))
			p.log.Warn("Skipping file", "path", file, "error", err)
			continue
		}
		if fr.HasErrors {
			p.log.Warn("File has syntax errors, extraction may be partial", "path", file)
		}

		for _, imp := range fr.Imports {
			imports[imp.Statement] = imp
		}
		for _, name := range fr.Definitions {
			if prev, ok := definedIn[name]; ok {
				p.log.Warn("Entity defined more than once, records are merged", "entity", name, "first", prev, "again", file)
			}
			definedIn[name] = file
		}
		result.FilesProcessed++
	}

	statements := make([]string, 0, len(imports))
	for stmt := range imports {
		statements = append(statements, stmt)
	}
	sort.Strings(statements)
	for _, stmt := range statements {
		result.Imports = append(result.Imports, imports[stmt])
	}

	p.log.Info("Extraction finished",
		"files", result.FilesProcessed,
		"custom", len(result.Store.Custom()),
		"reference", len(result.Store.References()),
		"imports", len(result.Imports))

	return result, nil
}

func (p *Pipeline) processFile(ctx context.Context, path string, st *store.Store) (*FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fr, err := p.extractor.Extract(ctx, content, path, st)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return fr, nil
}

// SourceFiles lists the Python files docweave works on for path: the file
// itself, or every .py file below a directory in lexical order.
func SourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &InvalidPathError{Path: path, Err: err}
	}

	if !info.IsDir() {
		if !isPython(path) {
			return nil, &InvalidPathError{Path: path}
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip vendored and generated directories
		if d.IsDir() {
			if p != path && models.IgnoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && isPython(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}

func isPython(path string) bool {
	return treesitter.LanguageForPath(path) == treesitter.Python
}
