// Package pysyntax holds helpers over tree-sitter Python trees: definition
// lookup, docstring detection and cleaning, and indentation handling that
// leaves multi-line string literals untouched.
package pysyntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const (
	FunctionDefinition  = "function_definition"
	ClassDefinition     = "class_definition"
	DecoratedDefinition = "decorated_definition"
	Comment             = "comment"
)

// IsDefinition reports whether n is a function or class definition.
func IsDefinition(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	t := n.Type()
	return t == FunctionDefinition || t == ClassDefinition
}

// Name returns the identifier of a definition node.
func Name(def *sitter.Node, src []byte) string {
	if def == nil {
		return ""
	}
	if n := def.ChildByFieldName("name"); n != nil {
		return n.Content(src)
	}
	return ""
}

// Body returns the block of a definition node.
func Body(def *sitter.Node) *sitter.Node {
	if def == nil {
		return nil
	}
	return def.ChildByFieldName("body")
}

// Statements returns the named children of a block that are not comments.
func Statements(block *sitter.Node) []*sitter.Node {
	if block == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child == nil || child.Type() == Comment {
			continue
		}
		out = append(out, child)
	}
	return out
}

// DocstringStatement returns the expression statement holding the docstring
// of a definition, or nil when it has none.
func DocstringStatement(def *sitter.Node) *sitter.Node {
	if !IsDefinition(def) {
		return nil
	}
	stmts := Statements(Body(def))
	if len(stmts) == 0 {
		return nil
	}
	if isStringStatement(stmts[0]) {
		return stmts[0]
	}
	return nil
}

// IsDocstringStatement reports whether stmt is the docstring of the
// definition that directly encloses it.
func IsDocstringStatement(stmt *sitter.Node) bool {
	if stmt == nil || !isStringStatement(stmt) {
		return false
	}
	block := stmt.Parent()
	if block == nil {
		return false
	}
	doc := DocstringStatement(block.Parent())
	return doc != nil && SameNode(doc, stmt)
}

// Docstring returns the cleaned docstring of a definition, or "".
func Docstring(def *sitter.Node, src []byte) string {
	stmt := DocstringStatement(def)
	if stmt == nil {
		return ""
	}
	return CleanDocstring(stringLiteralText(stmt.NamedChild(0), src))
}

// SameNode compares two nodes by kind and byte span.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type() == b.Type() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// FindDefinition returns the first top-level definition of the given kind
// named name, looking through decorators.
func FindDefinition(root *sitter.Node, src []byte, name, kind string) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == DecoratedDefinition {
			child = child.ChildByFieldName("definition")
		}
		if child == nil || child.Type() != kind {
			continue
		}
		if Name(child, src) == name {
			return child
		}
	}
	return nil
}

// LineStart returns the offset of the first byte of the line containing off.
func LineStart(src []byte, off int) int {
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

// Indentation returns the whitespace between the start of n's line and n.
// ok is false when something other than blanks precedes n on that line.
func Indentation(src []byte, n *sitter.Node) (indent string, ok bool) {
	start := int(n.StartByte())
	prefix := src[LineStart(src, start):start]
	for _, b := range prefix {
		if b != ' ' && b != '\t' {
			return "", false
		}
	}
	return string(prefix), true
}

// HeaderEnd returns the offset of the line holding the first body statement
// of def that is not its docstring. It returns def's end when the body has
// no such statement, and -1 when that statement shares the header's line.
func HeaderEnd(def *sitter.Node, src []byte) int {
	stmts := Statements(Body(def))
	if doc := DocstringStatement(def); doc != nil {
		stmts = stmts[1:]
	}
	if len(stmts) == 0 {
		return int(def.EndByte())
	}
	end := LineStart(src, int(stmts[0].StartByte()))
	if end <= LineStart(src, int(def.StartByte())) {
		return -1
	}
	return end
}

// StringRanges returns the byte spans of multi-line string literals inside
// n, excluding docstrings. Offsets are absolute within the source.
func StringRanges(n *sitter.Node) [][2]int {
	var out [][2]int
	var walk func(*sitter.Node)
	walk = func(cur *sitter.Node) {
		if cur == nil {
			return
		}
		switch cur.Type() {
		case "string", "concatenated_string":
			if cur.StartPoint().Row != cur.EndPoint().Row && !IsDocstringStatement(cur.Parent()) {
				out = append(out, [2]int{int(cur.StartByte()), int(cur.EndByte())})
			}
			return
		}
		for i := 0; i < int(cur.NamedChildCount()); i++ {
			walk(cur.NamedChild(i))
		}
	}
	walk(n)
	return out
}

// Dedent removes indent from every line of text that starts with it. Lines
// beginning inside a protected span (relative to text) are left as is.
func Dedent(text, indent string, protected [][2]int) string {
	if indent == "" {
		return text
	}
	return mapLines(text, protected, func(line string) string {
		return strings.TrimPrefix(line, indent)
	})
}

// Reindent prefixes every non-empty line of text with indent, skipping lines
// that begin inside a protected span (relative to text).
func Reindent(text, indent string, protected [][2]int) string {
	if indent == "" {
		return text
	}
	return mapLines(text, protected, func(line string) string {
		if strings.TrimSpace(line) == "" {
			return line
		}
		return indent + line
	})
}

// Shift moves absolute spans so they are relative to base.
func Shift(spans [][2]int, base int) [][2]int {
	out := make([][2]int, 0, len(spans))
	for _, s := range spans {
		out = append(out, [2]int{s[0] - base, s[1] - base})
	}
	return out
}

// CommonIndent returns the longest whitespace prefix shared by the non-blank
// lines of text.
func CommonIndent(text string) string {
	var common string
	first := true
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ws := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			common, first = ws, false
			continue
		}
		for !strings.HasPrefix(ws, common) {
			common = common[:len(common)-1]
		}
	}
	return common
}

func mapLines(text string, protected [][2]int, fn func(string) string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	off := 0
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if insideSpan(off, protected) {
			b.WriteString(line)
		} else {
			b.WriteString(fn(line))
		}
		off += len(line) + 1
	}
	return b.String()
}

func insideSpan(off int, spans [][2]int) bool {
	for _, s := range spans {
		if off > s[0] && off < s[1] {
			return true
		}
	}
	return false
}

func isStringStatement(stmt *sitter.Node) bool {
	if stmt == nil || stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	t := stmt.NamedChild(0).Type()
	return t == "string" || t == "concatenated_string"
}

func stringLiteralText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() != "concatenated_string" {
		return unquote(n.Content(src))
	}
	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if part := n.NamedChild(i); part != nil && part.Type() == "string" {
			parts = append(parts, unquote(part.Content(src)))
		}
	}
	return strings.Join(parts, "")
}

func unquote(raw string) string {
	raw = strings.TrimLeft(raw, "rRuUbBfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(raw) >= 2*len(q) && strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}

// CleanDocstring normalizes raw docstring text the way Python's
// inspect.cleandoc does: the first line is stripped, the common indentation
// of the remaining lines removed, and leading or trailing blank lines dropped.
func CleanDocstring(raw string) string {
	raw = strings.ReplaceAll(raw, "\t", "        ")
	lines := strings.Split(raw, "\n")
	lines[0] = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		indent := CommonIndent(strings.Join(lines[1:], "\n"))
		for i := 1; i < len(lines); i++ {
			lines[i] = strings.TrimRight(strings.TrimPrefix(lines[i], indent), " ")
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
