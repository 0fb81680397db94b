// Package shorten reduces docstrings to the compact form given to callers
// as dependency context.
package shorten

import (
	"context"
	"strings"

	"github.com/dpolishuk/docweave/internal/llm"
	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/dpolishuk/docweave/internal/models"
)

type Policy string

const (
	Truncate  Policy = "truncate"
	Summarize Policy = "summarize"
	Full      Policy = "full"
)

// Policies lists the accepted policy names.
var Policies = []Policy{Truncate, Summarize, Full}

// Valid reports whether p names a known policy.
func (p Policy) Valid() bool {
	for _, known := range Policies {
		if p == known {
			return true
		}
	}
	return false
}

// PromptFunc renders the summarization request for a named docstring.
type PromptFunc func(name, doc string) string

// Shortener applies one policy. Backend and Prompt are only used by
// Summarize.
type Shortener struct {
	Policy  Policy
	Backend llm.Backend
	System  string
	Prompt  PromptFunc
	log     *logger.Logger
	usage   llm.Usage
}

func New(policy Policy, backend llm.Backend, system string, prompt PromptFunc, log *logger.Logger) *Shortener {
	return &Shortener{Policy: policy, Backend: backend, System: system, Prompt: prompt, log: log}
}

// Usage returns the tokens spent on summarization so far.
func (s *Shortener) Usage() llm.Usage {
	return s.usage
}

// Shorten returns the compact form of doc for the entity called name.
// Empty or missing documentation is returned unchanged.
func (s *Shortener) Shorten(ctx context.Context, name, doc string) string {
	if doc == "" || doc == models.None {
		return doc
	}
	switch s.Policy {
	case Full:
		return doc
	case Truncate:
		return s.truncate(name, doc)
	case Summarize:
		return s.summarize(ctx, name, doc)
	default:
		s.log.Warn("Unknown shortening policy, using truncation", "policy", s.Policy, "entity", name)
		return s.truncate(name, doc)
	}
}

func (s *Shortener) truncate(name, doc string) string {
	out := TruncateDoc(doc)
	s.log.Debug("Truncated documentation", "entity", name, "from", len(doc), "to", len(out))
	return out
}

func (s *Shortener) summarize(ctx context.Context, name, doc string) string {
	if s.Backend == nil || s.Prompt == nil {
		s.log.Warn("No backend for summarization, using truncation", "entity", name)
		return s.truncate(name, doc)
	}
	text, usage, err := s.Backend.Generate(ctx, s.System, s.Prompt(name, doc))
	s.usage.Add(usage)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		s.log.Warn("Summarization failed, using truncation", "entity", name, "error", err)
		return s.truncate(name, doc)
	}
	return text
}

// TruncateDoc keeps the first blank-line-delimited paragraph of doc, or its
// first line when that removes nothing.
func TruncateDoc(doc string) string {
	out, _, _ := strings.Cut(doc, "\n\n")
	if len(out) == len(doc) {
		out, _, _ = strings.Cut(doc, "\n")
	}
	return out
}
