package indexer

import (
	"context"
	"reflect"
	"testing"

	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/store"
)

const calculatorSource = `import os.path
from math import sqrt as root
from .local import helper

def add(a, b):
    return a + b

class Calculator:
    """A simple calculator class"""

    def __init__(self):
        self.result = 0

    def multiply(self, a, b):
        result = a * b
        self.result = add(result, 0)
        self.log(os.path.join("a", "b"))
        return result

    def log(self, msg):
        print(msg)

def outer(x):
    def inner(y):
        return root(y)
    return inner(x) + inner(x)
`

func extract(t *testing.T, src string) (*store.Store, *FileResult) {
	t.Helper()
	extractor := NewExtractor()
	defer extractor.Close()

	st := store.New()
	fr, err := extractor.Extract(context.Background(), []byte(src), "calc.py", st)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return st, fr
}

func TestExtractDefinitions(t *testing.T) {
	st, fr := extract(t, calculatorSource)

	wantDefs := []string{"add", "Calculator", "Calculator.__init__", "Calculator.multiply", "Calculator.log", "outer", "outer.inner"}
	if !reflect.DeepEqual(fr.Definitions, wantDefs) {
		t.Errorf("Expected definitions %v, got %v", wantDefs, fr.Definitions)
	}

	types := map[string]models.EntityType{
		"add":                 models.EntityFunction,
		"Calculator":          models.EntityClass,
		"Calculator.multiply": models.EntityMethod,
		"outer.inner":         models.EntityFunction,
	}
	for name, want := range types {
		e := st.Get(name)
		if !e.IsCustom {
			t.Errorf("Expected %s to be custom", name)
		}
		if e.Type != want {
			t.Errorf("Expected %s to be %s, got %s", name, want, e.Type)
		}
		if e.SourcePath != "calc.py" {
			t.Errorf("Expected %s source path calc.py, got %s", name, e.SourcePath)
		}
		if e.Syntax == nil || e.Syntax.Node == nil {
			t.Errorf("Expected %s to carry its syntax node", name)
		}
	}
}

func TestExtractCodeAndIndent(t *testing.T) {
	st, _ := extract(t, calculatorSource)

	add := st.Get("add")
	if add.Code != "def add(a, b):\n    return a + b" {
		t.Errorf("Unexpected code for add: %q", add.Code)
	}
	if add.Indent != "" {
		t.Errorf("Expected no indent for add, got %q", add.Indent)
	}

	log := st.Get("Calculator.log")
	if log.Code != "    def log(self, msg):\n        print(msg)" {
		t.Errorf("Unexpected code for log: %q", log.Code)
	}
	if log.Indent != "    " {
		t.Errorf("Expected four-space indent, got %q", log.Indent)
	}
	if log.Header != "    def log(self, msg):\n" {
		t.Errorf("Unexpected header for log: %q", log.Header)
	}

	class := st.Get("Calculator")
	if class.Header != "class Calculator:\n    \"\"\"A simple calculator class\"\"\"\n\n" {
		t.Errorf("Unexpected header for Calculator: %q", class.Header)
	}
}

func TestExtractCalls(t *testing.T) {
	st, _ := extract(t, calculatorSource)

	tests := []struct {
		name string
		deps []string
	}{
		{"add", nil},
		{"Calculator.multiply", []string{"add", "Calculator.log", "os.path.join"}},
		{"Calculator.log", []string{"print"}},
		{"outer", []string{"outer.inner", "outer.inner"}},
		{"outer.inner", []string{"root"}},
		{"Calculator", []string{"Calculator.__init__", "Calculator.multiply", "Calculator.log"}},
	}
	for _, tt := range tests {
		got := st.Get(tt.name).Dependencies
		if len(got) == 0 && len(tt.deps) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.deps) {
			t.Errorf("%s: expected dependencies %v, got %v", tt.name, tt.deps, got)
		}
	}
}

func TestExtractRegistersReferenceStubs(t *testing.T) {
	st, _ := extract(t, calculatorSource)

	for _, name := range []string{"print", "os.path.join", "root"} {
		e, ok := st.Lookup(name)
		if !ok {
			t.Fatalf("Expected stub for %s", name)
		}
		if e.IsCustom {
			t.Errorf("Expected %s to be a reference entity", name)
		}
		if e.SourcePath != models.None {
			t.Errorf("Expected %s to have no source path, got %s", name, e.SourcePath)
		}
	}
}

func TestExtractImports(t *testing.T) {
	_, fr := extract(t, calculatorSource)

	if len(fr.Imports) != 3 {
		t.Fatalf("Expected 3 imports, got %d", len(fr.Imports))
	}

	plain := fr.Imports[0]
	if plain.Statement != "import os.path" || plain.From || len(plain.Names) != 1 || plain.Names[0].Name != "os.path" {
		t.Errorf("Unexpected plain import: %+v", plain)
	}

	aliased := fr.Imports[1]
	if aliased.Module != "math" || !aliased.From || aliased.Names[0].Name != "sqrt" || aliased.Names[0].Bound() != "root" {
		t.Errorf("Unexpected aliased import: %+v", aliased)
	}

	relative := fr.Imports[2]
	if !relative.Relative || relative.Module != ".local" {
		t.Errorf("Unexpected relative import: %+v", relative)
	}
}

func TestExtractDecoratedAndParenthesizedImport(t *testing.T) {
	src := `from typing import (
    List,
    Dict,
)

@staticmethod
def build():
    return List()
`
	st, fr := extract(t, src)

	if fr.Imports[0].Statement != "from typing import List, Dict" {
		t.Errorf("Unexpected normalized statement: %q", fr.Imports[0].Statement)
	}
	if len(fr.Imports[0].Names) != 2 {
		t.Errorf("Expected 2 imported names, got %+v", fr.Imports[0].Names)
	}
	build := st.Get("build")
	if !build.IsCustom || build.Code != "def build():\n    return List()" {
		t.Errorf("Unexpected decorated function record: %+v", build)
	}
}
