package refdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/pysyntax"
	"github.com/dpolishuk/docweave/pkg/treesitter"
	sitter "github.com/smacker/go-tree-sitter"
)

var (
	ErrModuleNotFound = errors.New("module not found on search path")
	ErrRelativeImport = errors.New("relative imports are not resolved")
	ErrNameNotFound   = errors.New("name not defined in module")
)

// ImportError reports an import statement that could not be brought into
// scope. It is never fatal.
type ImportError struct {
	Statement string
	Err       error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("could not import using %q: %v", e.Statement, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Builder fills a Table from builtins, YAML tables and the Python sources of
// imported modules found under a list of search paths.
type Builder struct {
	searchPaths []string
	parser      *treesitter.Parser
	log         *logger.Logger
	table       *Table
	scanned     map[string]moduleDocs
}

// moduleDocs maps names relative to a module ("" for the module itself,
// "f", "C", "C.m") to cleaned docstrings.
type moduleDocs map[string]string

func NewBuilder(searchPaths []string, log *logger.Logger) *Builder {
	return &Builder{
		searchPaths: searchPaths,
		parser:      treesitter.NewParser(),
		log:         log,
		table:       NewTable(),
		scanned:     make(map[string]moduleDocs),
	}
}

func (b *Builder) Close() {
	b.parser.Close()
}

// Table returns the table built so far.
func (b *Builder) Table() *Table {
	return b.table
}

// Builtins loads the embedded docstrings of common Python builtins.
func (b *Builder) Builtins() error {
	return b.table.LoadYAML(bytes.NewReader(builtinsYAML))
}

// LoadFile merges a user supplied YAML table.
func (b *Builder) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open reference table: %w", err)
	}
	defer f.Close()
	return b.table.LoadYAML(f)
}

// Build brings every import into scope, skipping the ones that fail.
func (b *Builder) Build(ctx context.Context, imports []models.Import) *Table {
	for _, imp := range imports {
		if err := b.Import(ctx, imp); err != nil {
			b.log.Debug("Import unavailable for reference docs", "error", err)
		}
	}
	b.log.Debug("Reference doc table ready", "symbols", b.table.Len())
	return b.table
}

// Import registers the docstrings an import statement makes reachable,
// under the names it binds.
func (b *Builder) Import(ctx context.Context, imp models.Import) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if imp.Relative {
		return &ImportError{Statement: imp.Statement, Err: ErrRelativeImport}
	}

	if !imp.From {
		for _, name := range imp.Names {
			docs, err := b.module(ctx, name.Name)
			if err != nil {
				return &ImportError{Statement: imp.Statement, Err: err}
			}
			// "import a.b" binds a, so the module is reached as a.b.
			prefix := name.Name
			if name.Alias != "" {
				prefix = name.Alias
			}
			b.register(prefix, docs, "")
		}
		return nil
	}

	if imp.Wildcard {
		docs, err := b.module(ctx, imp.Module)
		if err != nil {
			return &ImportError{Statement: imp.Statement, Err: err}
		}
		b.register("", docs, "")
		return nil
	}

	var parent moduleDocs
	for _, name := range imp.Names {
		// A submodule import wins over a name defined in the package.
		if sub, err := b.module(ctx, imp.Module+"."+name.Name); err == nil {
			b.register(name.Bound(), sub, "")
			continue
		}
		if parent == nil {
			docs, err := b.module(ctx, imp.Module)
			if err != nil {
				return &ImportError{Statement: imp.Statement, Err: err}
			}
			parent = docs
		}
		if _, ok := parent[name.Name]; !ok {
			return &ImportError{Statement: imp.Statement, Err: fmt.Errorf("%w: %s", ErrNameNotFound, name.Name)}
		}
		b.register(name.Bound(), parent, name.Name)
	}
	return nil
}

// register copies docs into the table under prefix. With a non-empty only,
// just that name and its members are copied, renamed to prefix.
func (b *Builder) register(prefix string, docs moduleDocs, only string) {
	for rel, doc := range docs {
		switch {
		case only != "":
			if rel != only && !strings.HasPrefix(rel, only+".") {
				continue
			}
			rel = strings.TrimPrefix(rel, only)
			rel = strings.TrimPrefix(rel, ".")
		case prefix == "" && rel == "":
			continue
		}
		b.table.Set(join(prefix, rel), doc)
	}
}

func join(prefix, rel string) string {
	switch {
	case prefix == "":
		return rel
	case rel == "":
		return prefix
	}
	return prefix + "." + rel
}

func (b *Builder) module(ctx context.Context, dotted string) (moduleDocs, error) {
	path, err := b.locate(dotted)
	if err != nil {
		return nil, err
	}
	if docs, ok := b.scanned[path]; ok {
		return docs, nil
	}
	docs, err := b.scan(ctx, path)
	if err != nil {
		return nil, err
	}
	b.scanned[path] = docs
	return docs, nil
}

// locate maps a dotted module name to a source file on the search path.
func (b *Builder) locate(dotted string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(dotted, ".", "/"))
	for _, root := range b.searchPaths {
		candidates := []string{
			filepath.Join(root, rel+models.SourceExtension),
			filepath.Join(root, rel, "__init__"+models.SourceExtension),
		}
		for _, c := range candidates {
			if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, dotted)
}

func (b *Builder) scan(ctx context.Context, path string) (moduleDocs, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	tree, err := b.parser.Parse(ctx, content, treesitter.Python)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	docs := moduleDocs{}
	if doc := moduleDocstring(root, content); doc != "" {
		docs[""] = doc
	}
	for _, def := range topLevel(root) {
		name := pysyntax.Name(def, content)
		docs[name] = pysyntax.Docstring(def, content)
		if def.Type() != pysyntax.ClassDefinition {
			continue
		}
		for _, member := range topLevel(pysyntax.Body(def)) {
			if member.Type() == pysyntax.FunctionDefinition {
				docs[name+"."+pysyntax.Name(member, content)] = pysyntax.Docstring(member, content)
			}
		}
	}
	return docs, nil
}

// topLevel returns the definitions directly inside n, unwrapping decorators.
func topLevel(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	if n == nil {
		return out
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child != nil && child.Type() == pysyntax.DecoratedDefinition {
			child = child.ChildByFieldName("definition")
		}
		if pysyntax.IsDefinition(child) {
			out = append(out, child)
		}
	}
	return out
}

func moduleDocstring(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Type() == pysyntax.Comment {
			continue
		}
		if child.Type() == "expression_statement" && child.NamedChildCount() == 1 && child.NamedChild(0).Type() == "string" {
			return pysyntax.CleanDocstring(unquoteLiteral(child.NamedChild(0).Content(src)))
		}
		return ""
	}
	return ""
}

func unquoteLiteral(raw string) string {
	raw = strings.TrimLeft(raw, "rRuU")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(raw) >= 2*len(q) && strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}
