package docgen

import (
	"fmt"
	"strings"
)

// SystemPrompt sets the role for every backend call.
const SystemPrompt = `You are an expert Python developer who writes clear, accurate docstrings.
You never change code: you only add or improve docstrings.`

// RefDoc is the short documentation of something the entity calls.
type RefDoc struct {
	Name string
	Doc  string
}

// GenerationPrompt asks for the code back with a docstring added. feedback
// carries the rejection reason of the previous attempt, if any.
func GenerationPrompt(code string, refs []RefDoc, feedback string) string {
	var b strings.Builder
	b.WriteString("Add a docstring to the following Python code. Use the Google docstring style: a one-line summary, ")
	b.WriteString("then Args, Returns and Raises sections where they apply. If the code is a class, document the class itself ")
	b.WriteString("and leave its methods unchanged.\n\n")
	b.WriteString("Return the complete code in a single ```python code block. Do not change, reformat, rename or remove any code; ")
	b.WriteString("only the docstring of the top-level definition may be added or replaced.\n\n")
	b.WriteString("Code:\n```python\n")
	b.WriteString(code)
	b.WriteString("\n```\n")

	if len(refs) > 0 {
		b.WriteString("\nDocumentation of the functions and classes it uses:\n")
		for _, ref := range refs {
			fmt.Fprintf(&b, "\n%s:\n%s\n", ref.Name, indentBlock(ref.Doc, "    "))
		}
	}
	if feedback != "" {
		fmt.Fprintf(&b, "\nYour previous answer was rejected: %s\nReturn the original code unchanged apart from the docstring.\n", feedback)
	}
	return b.String()
}

// SummarizationPrompt asks for a one or two sentence summary of a docstring.
func SummarizationPrompt(name, doc string) string {
	return fmt.Sprintf("Summarize the documentation of `%s` in one or two sentences. "+
		"Reply with the summary text only.\n\nDocumentation:\n%s\n", name, doc)
}

func indentBlock(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}
