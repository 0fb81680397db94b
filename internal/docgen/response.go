package docgen

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/pysyntax"
	"github.com/dpolishuk/docweave/pkg/treesitter"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)```")

// Candidate is a definition recovered from a backend response.
type Candidate struct {
	// Code runs from the start of the definition's line to its end, with
	// the response's common indentation removed.
	Code string
	// Header is Code up to the line of the first body statement that is
	// not the docstring, or models.None when that statement shares the
	// declaration line.
	Header    string
	Docstring string
	Syntax    *models.SyntaxNode
	// spans are the multi-line string literals of Code, relative to Code.
	spans [][2]int
}

// ExtractCode returns the body of the first fenced code block in text, or
// text itself when there is none.
func ExtractCode(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// parseCandidate finds the top-level definition called name of the given
// kind in a backend response. Errors describe why the response is unusable.
func parseCandidate(ctx context.Context, parser *treesitter.Parser, text, name, kind string) (*Candidate, error) {
	code := ExtractCode(text)
	code = pysyntax.Dedent(code, pysyntax.CommonIndent(code), nil)
	if len(code) == 0 {
		return nil, fmt.Errorf("response contains no code")
	}

	src := []byte(code)
	tree, err := parser.ParseStrict(ctx, src, treesitter.Python)
	if err != nil {
		return nil, err
	}
	def := pysyntax.FindDefinition(tree.RootNode(), src, name, kind)
	if def == nil {
		return nil, fmt.Errorf("response defines no %s named %q", kind, name)
	}

	start := pysyntax.LineStart(src, int(def.StartByte()))
	end := int(def.EndByte())
	spans := pysyntax.Shift(pysyntax.StringRanges(def), start)
	c := &Candidate{
		Code:      string(src[start:end]),
		Header:    models.None,
		Docstring: pysyntax.Docstring(def, src),
		Syntax:    &models.SyntaxNode{Node: def, Source: src},
		spans:     spans,
	}
	if hend := pysyntax.HeaderEnd(def, src); hend >= 0 {
		c.Header = string(src[start:hend])
	}
	return c, nil
}

// Reindented returns Code and Header with indent applied to every line that
// does not start inside a multi-line string.
func (c *Candidate) Reindented(indent string) (code, header string) {
	code = pysyntax.Reindent(c.Code, indent, c.spans)
	header = c.Header
	if header != models.None {
		header = pysyntax.Reindent(header, indent, c.spans)
	}
	return code, header
}
