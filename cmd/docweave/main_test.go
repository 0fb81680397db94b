package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dpolishuk/docweave/internal/config"
	"github.com/dpolishuk/docweave/internal/indexer"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calcSource = `import math


def add(a, b):
    return a + b


def double(x):
    return add(x, x)
`

const calcDocumented = `import math


def add(a, b):
    """Add two numbers.

    Args:
        a: first operand.
        b: second operand.
    """
    return a + b


def double(x):
    """Return twice x."""
    return add(x, x)
`

// fakeBackend serves chat completions that document add and double.
func fakeBackend(t *testing.T, prompts *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[len(req.Messages)-1].Content
		*prompts = append(*prompts, prompt)

		var code string
		switch {
		case strings.Contains(prompt, "def add(a, b):"):
			code = "def add(a, b):\n    \"\"\"Add two numbers.\n\n    Args:\n        a: first operand.\n        b: second operand.\n    \"\"\"\n    return a + b\n"
		case strings.Contains(prompt, "def double(x):"):
			code = "def double(x):\n    \"\"\"Return twice x.\"\"\"\n    return add(x, x)\n"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": "```python\n" + code + "```"},
			}},
			"usage": map[string]int{"prompt_tokens": 50, "completion_tokens": 25, "total_tokens": 75},
		})
	}))
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	return cmd.Execute()
}

func TestRun_DocumentsProject(t *testing.T) {
	t.Setenv("PYTHONPATH", "")
	var prompts []string
	server := fakeBackend(t, &prompts)
	defer server.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "calc.py")
	require.NoError(t, os.WriteFile(src, []byte(calcSource), 0o644))
	reportPath := filepath.Join(t.TempDir(), "report.csv")
	metricsPath := filepath.Join(t.TempDir(), "docweave.prom")

	err := execute(t, dir,
		"--api-key", "sk-test",
		"--api-base-url", server.URL+"/v1",
		"--report", reportPath,
		"--metrics-file", metricsPath,
	)
	require.NoError(t, err)

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, calcDocumented, string(got))

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "def add(a, b):")
	assert.Contains(t, prompts[1], "add:\n    Add two numbers.")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "path,function,documentation,shortened documentation,code_before,code_after", strings.SplitN(string(data), "\n", 2)[0])

	data, err = os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docweave_generation_attempts_total{outcome="accepted"} 2`)
	assert.Contains(t, string(data), `docweave_backend_tokens_total{kind="total"} 150`)
}

func TestRun_DryRunLeavesFiles(t *testing.T) {
	var prompts []string
	server := fakeBackend(t, &prompts)
	defer server.Close()

	src := filepath.Join(t.TempDir(), "calc.py")
	require.NoError(t, os.WriteFile(src, []byte(calcSource), 0o644))

	require.NoError(t, execute(t, src, "--api-key", "sk-test", "--api-base-url", server.URL+"/v1", "--dry-run"))

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, calcSource, string(got))
	assert.Len(t, prompts, 2)
}

func TestRun_InvalidPath(t *testing.T) {
	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o644))

	err := execute(t, notes, "--port", "8080")

	var pathErr *indexer.InvalidPathError
	assert.True(t, errors.As(err, &pathErr), "got %v", err)
}

func TestRun_RequiresBackend(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	err := execute(t, t.TempDir())

	assert.ErrorIs(t, err, config.ErrNoBackend)
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docweave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: from-file\nmax_retries: 7\nport: 9000\n"), 0o644))

	fv := &flagValues{}
	cmd := &cobra.Command{}
	bindFlags(cmd, fv, config.Load())
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--model", "from-flag"}))

	cfg, err := resolveConfig(cmd, fv)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Model)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 9000, cfg.Port)
}
