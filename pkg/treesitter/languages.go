package treesitter

import (
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Python is the only grammar docweave documents.
const Python = "python"

var languages = map[string]*sitter.Language{
	Python: python.GetLanguage(),
}

var extensions = map[string]string{
	".py": Python,
}

func GetLanguage(name string) *sitter.Language {
	return languages[name]
}

// LanguageForPath returns the grammar name for a source file, or "" when
// the extension is not recognized.
func LanguageForPath(path string) string {
	return extensions[filepath.Ext(path)]
}
