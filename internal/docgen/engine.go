// Package docgen generates docstrings for custom entities in dependency
// order and accepts only candidates that are structurally identical to the
// original code.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dpolishuk/docweave/internal/llm"
	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/dpolishuk/docweave/internal/metrics"
	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/pysyntax"
	"github.com/dpolishuk/docweave/internal/refdoc"
	"github.com/dpolishuk/docweave/internal/scheduler"
	"github.com/dpolishuk/docweave/internal/shorten"
	"github.com/dpolishuk/docweave/internal/store"
	"github.com/dpolishuk/docweave/internal/verify"
	"github.com/dpolishuk/docweave/pkg/treesitter"
)

// ErrRetryBudgetExhausted is returned for an entity none of whose attempts
// was accepted. It is never fatal to a run.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

type RejectionKind string

const (
	// ParseFailure covers backend errors and responses without a usable
	// definition.
	ParseFailure RejectionKind = "parse failure"
	// StructuralMismatch is a candidate whose code differs from the
	// original beyond documentation.
	StructuralMismatch RejectionKind = "structural mismatch"
)

// Rejection explains why an attempt was not accepted.
type Rejection struct {
	Kind   RejectionKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

// Attempt is the result of one generation request: a Candidate when it was
// accepted, a Rejection otherwise.
type Attempt struct {
	Candidate *Candidate
	Rejection *Rejection
	Usage     llm.Usage
}

func (a Attempt) Accepted() bool {
	return a.Rejection == nil && a.Candidate != nil
}

// Summary reports the outcome of a run.
type Summary struct {
	Total      int
	Documented int
	Exhausted  []string
	Usage      llm.Usage
}

type Engine struct {
	store      *store.Store
	backend    llm.Backend
	resolver   refdoc.Resolver
	shortener  *shorten.Shortener
	metrics    *metrics.Recorder
	parser     *treesitter.Parser
	log        *logger.Logger
	maxRetries int
	usage      llm.Usage
}

// NewEngine wires the generation loop. resolver and rec may be nil; a nil
// shortener truncates.
func NewEngine(st *store.Store, backend llm.Backend, resolver refdoc.Resolver, shortener *shorten.Shortener, rec *metrics.Recorder, maxRetries int, log *logger.Logger) *Engine {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if shortener == nil {
		shortener = shorten.New(shorten.Truncate, nil, "", nil, log)
	}
	return &Engine{
		store:      st,
		backend:    backend,
		resolver:   resolver,
		shortener:  shortener,
		metrics:    rec,
		parser:     treesitter.NewParser(),
		log:        log,
		maxRetries: maxRetries,
	}
}

func (e *Engine) Close() {
	e.parser.Close()
}

// ResolveReferences fills in the documentation of every external symbol the
// project calls, so that it is available as context from the start.
func (e *Engine) ResolveReferences(ctx context.Context) int {
	if e.resolver == nil {
		return 0
	}
	resolved := 0
	for _, ref := range e.store.References() {
		doc, ok := e.resolver.ResolveDoc(ref.Name)
		if !ok {
			continue
		}
		ref.Documentation = doc
		ref.DocumentationShort = e.shortener.Shorten(ctx, ref.Name, doc)
		resolved++
	}
	e.log.Info("Resolved reference documentation", "resolved", resolved, "references", len(e.store.References()))
	return resolved
}

// Run documents every custom entity in scheduler order. It stops early only
// when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	e.ResolveReferences(ctx)

	sched := scheduler.New(e.store)
	total := sched.Len()
	summary := &Summary{Total: total}
	e.log.Info("Generating documentation", "entities", total, "max_retries", e.maxRetries)

	width := len(fmt.Sprint(total))
	for i := 1; ; i++ {
		name, ok := sched.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		started := time.Now()
		tries, err := e.Document(ctx, name)
		sched.Done(name)

		progress := fmt.Sprintf("[%0*d/%d]", width, i, total)
		switch {
		case err == nil:
			summary.Documented++
			e.metrics.Entity(metrics.ResultDocumented, time.Since(started))
			e.log.Info(fmt.Sprintf("%s Documented %s in %d/%d tries", progress, name, tries, e.maxRetries))
		case errors.Is(err, ErrRetryBudgetExhausted):
			summary.Exhausted = append(summary.Exhausted, name)
			e.metrics.Entity(metrics.ResultExhausted, time.Since(started))
			e.log.Info(fmt.Sprintf("%s Could not document %s after %d tries", progress, name, e.maxRetries), "reason", err)
		default:
			return summary, err
		}

		if ent, ok := e.store.Lookup(name); ok && ent.Documented() {
			ent.DocumentationShort = e.shortener.Shorten(ctx, name, ent.Documentation)
		}
	}

	summary.Usage = e.usage
	summary.Usage.Add(e.shortener.Usage())
	e.metrics.Tokens(e.shortener.Usage())
	e.log.Info(fmt.Sprintf("Documented %d/%d custom functions, methods and classes", summary.Documented, total),
		"prompt_tokens", summary.Usage.Prompt,
		"completion_tokens", summary.Usage.Completion,
		"total_tokens", summary.Usage.Total)
	return summary, nil
}

// Document runs up to the retry budget of attempts for one entity and
// commits the first accepted candidate. It returns the number of attempts
// made.
func (e *Engine) Document(ctx context.Context, name string) (int, error) {
	ent, ok := e.store.Lookup(name)
	if !ok || ent.Syntax == nil {
		return 0, fmt.Errorf("entity %s has no definition", name)
	}

	code := OriginalCode(ent)
	refs := e.References(name)
	kind := ent.Syntax.Node.Type()

	var last *Rejection
	for try := 1; try <= e.maxRetries; try++ {
		if err := ctx.Err(); err != nil {
			return try - 1, err
		}
		e.log.Debug("Generating docstring", "entity", name, "try", try, "max", e.maxRetries)

		feedback := ""
		if last != nil {
			feedback = last.Error()
		}
		attempt := e.attempt(ctx, ent, kind, GenerationPrompt(code, refs, feedback))
		e.usage.Add(attempt.Usage)
		e.metrics.Tokens(attempt.Usage)

		if attempt.Accepted() {
			e.metrics.Attempt(metrics.OutcomeAccepted)
			e.commit(ent, attempt.Candidate)
			return try, nil
		}
		if err := ctx.Err(); err != nil {
			return try, err
		}

		last = attempt.Rejection
		switch last.Kind {
		case StructuralMismatch:
			e.metrics.Attempt(metrics.OutcomeStructuralMismatch)
		default:
			e.metrics.Attempt(metrics.OutcomeParseFailure)
		}
		e.log.Debug("Attempt rejected", "entity", name, "try", try, "reason", last.Error())
	}
	return e.maxRetries, fmt.Errorf("%w: %w", ErrRetryBudgetExhausted, last)
}

func (e *Engine) attempt(ctx context.Context, ent *models.Entity, kind, prompt string) Attempt {
	text, usage, err := e.backend.Generate(ctx, SystemPrompt, prompt)
	if err != nil {
		return Attempt{Usage: usage, Rejection: &Rejection{Kind: ParseFailure, Reason: err.Error()}}
	}

	candidate, err := parseCandidate(ctx, e.parser, text, ent.ShortName(), kind)
	if err != nil {
		return Attempt{Usage: usage, Rejection: &Rejection{Kind: ParseFailure, Reason: err.Error()}}
	}
	if candidate.Docstring == "" {
		return Attempt{Usage: usage, Rejection: &Rejection{Kind: ParseFailure, Reason: "response has no docstring"}}
	}
	if same, reason := verify.Equivalent(ent.Syntax, candidate.Syntax); !same {
		return Attempt{Usage: usage, Rejection: &Rejection{Kind: StructuralMismatch, Reason: reason}}
	}
	return Attempt{Usage: usage, Candidate: candidate}
}

func (e *Engine) commit(ent *models.Entity, c *Candidate) {
	ent.CodeNew, ent.HeaderNew = c.Reindented(ent.Indent)
	ent.Documentation = c.Docstring
}

// References returns the short docs available for the distinct
// dependencies of name, in call order.
func (e *Engine) References(name string) []RefDoc {
	var refs []RefDoc
	seen := make(map[string]bool)
	for _, dep := range e.store.Get(name).Dependencies {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		d := e.store.Get(dep)
		if d.DocumentationShort == models.None || d.DocumentationShort == "" {
			continue
		}
		refs = append(refs, RefDoc{Name: dep, Doc: d.DocumentationShort})
	}
	return refs
}

// OriginalCode returns the entity's code with its own indentation removed,
// leaving multi-line string literals intact.
func OriginalCode(ent *models.Entity) string {
	if ent.Syntax == nil || ent.Indent == "" {
		return ent.Code
	}
	node, src := ent.Syntax.Node, ent.Syntax.Source
	start := pysyntax.LineStart(src, int(node.StartByte()))
	return pysyntax.Dedent(ent.Code, ent.Indent, pysyntax.Shift(pysyntax.StringRanges(node), start))
}
