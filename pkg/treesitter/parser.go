package treesitter

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrSyntax is returned by ParseStrict when the tree contains error nodes.
var ErrSyntax = errors.New("syntax error")

type Parser struct {
	parser *sitter.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

func (p *Parser) Parse(ctx context.Context, content []byte, language string) (*sitter.Tree, error) {
	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.parser.SetLanguage(lang)

	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return tree, nil
}

// ParseStrict parses content and rejects trees that tree-sitter had to
// recover with ERROR or MISSING nodes.
func (p *Parser) ParseStrict(ctx context.Context, content []byte, language string) (*sitter.Tree, error) {
	tree, err := p.Parse(ctx, content, language)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, fmt.Errorf("%w near line %d", ErrSyntax, line)
	}
	return tree, nil
}

func (p *Parser) Close() {
	p.parser.Close()
}

func firstErrorLine(n *sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}
