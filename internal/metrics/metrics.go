// Package metrics records run statistics on a private Prometheus registry
// and writes them out in the text exposition format.
package metrics

import (
	"fmt"
	"time"

	"github.com/dpolishuk/docweave/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes.
const (
	OutcomeAccepted           = "accepted"
	OutcomeParseFailure       = "parse_failure"
	OutcomeStructuralMismatch = "structural_mismatch"
)

// Entity results.
const (
	ResultDocumented = "documented"
	ResultExhausted  = "exhausted"
)

// Recorder is safe to use through a nil pointer, in which case nothing is
// recorded.
type Recorder struct {
	registry *prometheus.Registry

	// attempts counts generation attempts.
	// Labels: outcome (accepted, parse_failure, structural_mismatch)
	attempts *prometheus.CounterVec

	// entities counts custom entities by final result.
	// Labels: result (documented, exhausted)
	entities *prometheus.CounterVec

	// tokens counts backend tokens.
	// Labels: kind (prompt, completion, total)
	tokens *prometheus.CounterVec

	// duration measures time spent on one entity, all attempts included.
	duration prometheus.Histogram
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docweave",
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Docstring generation attempts by outcome",
		}, []string{"outcome"}),
		entities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docweave",
			Subsystem: "generation",
			Name:      "entities_total",
			Help:      "Custom entities processed by result",
		}, []string{"result"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docweave",
			Subsystem: "backend",
			Name:      "tokens_total",
			Help:      "Tokens consumed by the chat backend",
		}, []string{"kind"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docweave",
			Subsystem: "generation",
			Name:      "entity_duration_seconds",
			Help:      "Time spent documenting one entity",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// Registry exposes the underlying registry for tests and exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Attempt(outcome string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Entity(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(result).Inc()
	r.duration.Observe(elapsed.Seconds())
}

func (r *Recorder) Tokens(u llm.Usage) {
	if r == nil {
		return
	}
	r.tokens.WithLabelValues("prompt").Add(float64(u.Prompt))
	r.tokens.WithLabelValues("completion").Add(float64(u.Completion))
	r.tokens.WithLabelValues("total").Add(float64(u.Total))
}

// WriteFile writes every metric to path in the text format used by the node
// exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
