package models

import sitter "github.com/smacker/go-tree-sitter"

// None marks a text field that has not been produced yet.
const None = "-"

type EntityType string

const (
	EntityFunction EntityType = "function"
	EntityMethod   EntityType = "method"
	EntityClass    EntityType = "class"
	EntityUnknown  EntityType = "unknown"
)

// SyntaxNode is a parsed definition together with the source it indexes.
// The node keeps its tree alive; the record that holds it owns both.
type SyntaxNode struct {
	Node   *sitter.Node
	Source []byte
}

// Entity is everything docweave knows about one function, method or class,
// or about an external symbol that project code calls.
type Entity struct {
	Name               string
	Dependencies       []string
	Documentation      string
	DocumentationShort string
	Syntax             *SyntaxNode
	Code               string
	CodeNew            string
	// Header is the declaration plus any existing docstring, up to the line
	// holding the first real body statement. HeaderNew is its replacement.
	Header    string
	HeaderNew string
	// Offset is where Code starts in the file it was read from, or -1.
	Offset     int
	Indent     string
	IsCustom   bool
	SourcePath string
	Type       EntityType
}

// NewEntity returns the default record used for stubs.
func NewEntity(name string) *Entity {
	return &Entity{
		Name:               name,
		Dependencies:       []string{},
		Documentation:      None,
		DocumentationShort: None,
		Code:               None,
		CodeNew:            None,
		Header:             None,
		HeaderNew:          None,
		Offset:             -1,
		SourcePath:         None,
		Type:               EntityUnknown,
	}
}

// Documented reports whether documentation has been produced or resolved.
func (e *Entity) Documented() bool {
	return e.Documentation != None && e.Documentation != ""
}

// ShortName is the last dotted segment of the entity name.
func (e *Entity) ShortName() string {
	for i := len(e.Name) - 1; i >= 0; i-- {
		if e.Name[i] == '.' {
			return e.Name[i+1:]
		}
	}
	return e.Name
}

// Import is one import statement found in project code.
type Import struct {
	Statement string
	Module    string
	Names     []ImportName
	Wildcard  bool
	Relative  bool
	// From is true for "from X import ..." statements.
	From bool
}

type ImportName struct {
	Name  string
	Alias string
}

// Bound returns the name the import binds in the importing scope.
func (n ImportName) Bound() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}
