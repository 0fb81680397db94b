package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/pysyntax"
	"github.com/dpolishuk/docweave/internal/store"
	"github.com/dpolishuk/docweave/pkg/treesitter"
	sitter "github.com/smacker/go-tree-sitter"
)

// FileResult is what one source file contributed to the store.
type FileResult struct {
	Imports     []models.Import
	Definitions []string
	// HasErrors is set when tree-sitter had to recover from syntax errors.
	HasErrors bool
}

// Extractor wraps the tree-sitter parser for definition and call extraction
type Extractor struct {
	parser *treesitter.Parser
}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{
		parser: treesitter.NewParser(),
	}
}

// Close releases resources used by the extractor
func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses one Python file, registers every definition in it together
// with its call targets, and returns the file's import statements.
//
// The parsed tree is not closed: entity records keep nodes into it.
func (e *Extractor) Extract(ctx context.Context, content []byte, filePath string, st *store.Store) (*FileResult, error) {
	tree, err := e.parser.Parse(ctx, content, treesitter.Python)
	if err != nil {
		return nil, fmt.Errorf("failed to parse code: %w", err)
	}

	root := tree.RootNode()
	result := &FileResult{
		Imports:   extractImports(root, content),
		HasErrors: root.HasError(),
	}

	w := &defWalker{src: content, path: filePath, store: st, result: result}
	w.walk(root, "", "")

	return result, nil
}

type defWalker struct {
	src    []byte
	path   string
	store  *store.Store
	result *FileResult
}

// walk finds the definitions reachable from n without crossing another
// definition. prefix qualifies their names; class is the enclosing class
// used to resolve self and cls.
func (w *defWalker) walk(n *sitter.Node, prefix, class string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if pysyntax.IsDefinition(child) {
			w.register(child, prefix, class, n)
			continue
		}
		w.walk(child, prefix, class)
	}
}

func (w *defWalker) register(def *sitter.Node, prefix, class string, container *sitter.Node) {
	short := pysyntax.Name(def, w.src)
	if short == "" {
		return
	}
	name := prefix + short
	body := pysyntax.Body(def)
	nested := nestedDefinitions(body, w.src)

	entityType := models.EntityFunction
	childClass := class
	var deps []string
	switch {
	case def.Type() == pysyntax.ClassDefinition:
		entityType = models.EntityClass
		childClass = name
		deps = w.calls(body, name, nested, name)
		// A class is described by its methods.
		for _, n := range nested {
			if n.kind == pysyntax.FunctionDefinition {
				deps = append(deps, name+"."+n.name)
			}
		}
	default:
		if isClassBody(container) {
			entityType = models.EntityMethod
		}
		deps = w.calls(body, name, nested, class)
	}

	start := int(def.StartByte())
	end := int(def.EndByte())
	indent, ok := pysyntax.Indentation(w.src, def)
	if ok {
		start = pysyntax.LineStart(w.src, start)
	}
	header := models.None
	if hend := pysyntax.HeaderEnd(def, w.src); ok && hend >= 0 {
		header = string(w.src[start:hend])
	}

	w.store.Add(name, deps...)
	w.store.Update(name, func(e *models.Entity) {
		e.Syntax = &models.SyntaxNode{Node: def, Source: w.src}
		e.Code = string(w.src[start:end])
		e.Header = header
		e.Offset = start
		e.Indent = indent
		e.IsCustom = true
		e.SourcePath = w.path
		e.Type = entityType
	})
	w.result.Definitions = append(w.result.Definitions, name)

	w.walk(body, name+".", childClass)
}

type nestedDef struct {
	name string
	kind string
}

// nestedDefinitions lists the definitions directly owned by a body.
func nestedDefinitions(body *sitter.Node, src []byte) []nestedDef {
	var out []nestedDef
	var visit func(*sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == nil {
				continue
			}
			if pysyntax.IsDefinition(child) {
				out = append(out, nestedDef{name: pysyntax.Name(child, src), kind: child.Type()})
				continue
			}
			visit(child)
		}
	}
	if body != nil {
		visit(body)
	}
	return out
}

func isClassBody(container *sitter.Node) bool {
	for n := container; n != nil; n = n.Parent() {
		switch n.Type() {
		case pysyntax.ClassDefinition:
			return true
		case pysyntax.FunctionDefinition, "module":
			return false
		}
	}
	return false
}

// calls collects the call targets in body, not descending into nested
// definitions, in source order. Duplicates are kept.
func (w *defWalker) calls(body *sitter.Node, owner string, nested []nestedDef, class string) []string {
	var out []string
	var traverse func(*sitter.Node)
	traverse = func(n *sitter.Node) {
		if n == nil || pysyntax.IsDefinition(n) {
			return
		}
		if n.Type() == "call" {
			if target := resolveCallTarget(n.ChildByFieldName("function"), w.src, owner, nested, class); target != "" {
				out = append(out, target)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			traverse(n.NamedChild(i))
		}
	}
	traverse(body)
	return out
}

// resolveCallTarget qualifies the callee of a call expression where the
// enclosing scopes allow it. Calls on anything but a plain dotted name
// resolve to "".
func resolveCallTarget(fn *sitter.Node, src []byte, owner string, nested []nestedDef, class string) string {
	parts := dottedParts(fn, src)
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		for _, n := range nested {
			if n.name == parts[0] {
				return owner + "." + parts[0]
			}
		}
		return parts[0]
	}
	if class != "" && (parts[0] == "self" || parts[0] == "cls") {
		return class + "." + strings.Join(parts[1:], ".")
	}
	return strings.Join(parts, ".")
}

func dottedParts(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return []string{n.Content(src)}
	case "attribute":
		object := dottedParts(n.ChildByFieldName("object"), src)
		attr := n.ChildByFieldName("attribute")
		if object == nil || attr == nil {
			return nil
		}
		return append(object, attr.Content(src))
	}
	return nil
}

// extractImports returns every import statement in the file, nested ones
// included, in source order.
func extractImports(root *sitter.Node, src []byte) []models.Import {
	var out []models.Import
	var traverse func(*sitter.Node)
	traverse = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "import_statement":
			out = append(out, parseImport(n, src))
			return
		case "import_from_statement":
			out = append(out, parseFromImport(n, src))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			traverse(n.NamedChild(i))
		}
	}
	traverse(root)
	return out
}

func parseImport(n *sitter.Node, src []byte) models.Import {
	imp := models.Import{Statement: normalizeStatement(n.Content(src))}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if name, ok := importName(n.NamedChild(i), src); ok {
			imp.Names = append(imp.Names, name)
		}
	}
	return imp
}

func parseFromImport(n *sitter.Node, src []byte) models.Import {
	imp := models.Import{Statement: normalizeStatement(n.Content(src)), From: true}
	module := n.ChildByFieldName("module_name")
	if module != nil {
		imp.Module = module.Content(src)
		imp.Relative = module.Type() == "relative_import"
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || pysyntax.SameNode(child, module) {
			continue
		}
		if child.Type() == "wildcard_import" {
			imp.Wildcard = true
			continue
		}
		if name, ok := importName(child, src); ok {
			imp.Names = append(imp.Names, name)
		}
	}
	return imp
}

func importName(n *sitter.Node, src []byte) (models.ImportName, bool) {
	if n == nil {
		return models.ImportName{}, false
	}
	switch n.Type() {
	case "dotted_name", "identifier":
		return models.ImportName{Name: n.Content(src)}, true
	case "aliased_import":
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		if name == nil {
			return models.ImportName{}, false
		}
		out := models.ImportName{Name: name.Content(src)}
		if alias != nil {
			out.Alias = alias.Content(src)
		}
		return out, true
	}
	return models.ImportName{}, false
}

func normalizeStatement(s string) string {
	s = strings.NewReplacer("\\\n", " ", "(", " ", ")", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " ,", ",")
	return strings.TrimSuffix(s, ",")
}
