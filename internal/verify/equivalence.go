// Package verify checks that a documented definition is the original
// definition with only its documentation changed.
package verify

import (
	"fmt"
	"strings"

	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/pysyntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// Equivalent compares two definitions while skipping documentation-only
// nodes: comments and the docstring statement of any function or class
// body. It returns a reason naming the first difference when they are not
// equivalent.
func Equivalent(a, b *models.SyntaxNode) (bool, string) {
	if a == nil || b == nil || a.Node == nil || b.Node == nil {
		return false, "missing syntax tree"
	}
	c := comparer{srcA: a.Source, srcB: b.Source}
	if reason := c.compare(a.Node, b.Node, nil); reason != "" {
		return false, reason
	}
	return true, ""
}

type comparer struct {
	srcA, srcB []byte
}

func (c comparer) compare(a, b *sitter.Node, path []string) string {
	path = append(path, a.Type())
	if a.Type() != b.Type() {
		return fmt.Sprintf("%s: node kind %s != %s", strings.Join(path, " > "), a.Type(), b.Type())
	}

	if a.ChildCount() == 0 || b.ChildCount() == 0 {
		ta, tb := leafText(a, c.srcA), leafText(b, c.srcB)
		if ta != tb {
			return fmt.Sprintf("%s: token %q != %q", strings.Join(path, " > "), ta, tb)
		}
		return ""
	}

	// A body holding only a docstring has no significant children left.
	ka, kb := significant(a), significant(b)
	if len(ka) != len(kb) {
		return fmt.Sprintf("%s: %d children != %d (%s vs %s)",
			strings.Join(path, " > "), len(ka), len(kb), kinds(ka), kinds(kb))
	}
	for i := range ka {
		if reason := c.compare(ka[i], kb[i], path); reason != "" {
			return reason
		}
	}
	return ""
}

// significant returns the children of n that are not documentation.
func significant(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || child.Type() == pysyntax.Comment || pysyntax.IsDocstringStatement(child) {
			continue
		}
		out = append(out, child)
	}
	return out
}

// leafText returns the token text with string delimiters normalized so that
// 'x' and "x" compare equal.
func leafText(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	switch n.Type() {
	case "string_start", "string_end", "string":
		return strings.ReplaceAll(text, "'", `"`)
	}
	return text
}

func kinds(nodes []*sitter.Node) string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Type())
	}
	return strings.Join(names, ",")
}
