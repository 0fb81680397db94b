// Package scheduler orders custom entities so that callees tend to be
// documented before their callers.
package scheduler

import (
	"sort"

	"github.com/dpolishuk/docweave/internal/store"
)

// Scheduler is a greedy approximate topological order over the custom
// entities of a store. Cycles and unreached dependencies only lower an
// entity's priority; they never block selection.
type Scheduler struct {
	store   *store.Store
	pending []string
}

// New snapshots the custom entities of st as the pending set.
func New(st *store.Store) *Scheduler {
	var pending []string
	for _, e := range st.Custom() {
		pending = append(pending, e.Name)
	}
	sort.Strings(pending)
	return &Scheduler{store: st, pending: pending}
}

// Len is the number of entities still pending.
func (s *Scheduler) Len() int {
	return len(s.pending)
}

// Next returns the pending entity with the fewest undocumented dependencies,
// breaking ties by name. ok is false once every entity has been processed.
func (s *Scheduler) Next() (name string, ok bool) {
	best := -1
	for _, candidate := range s.pending {
		n := s.store.UndocumentedDependencies(candidate)
		if best < 0 || n < best {
			best, name = n, candidate
		}
	}
	return name, best >= 0
}

// Done removes name from the pending set whatever the outcome of its
// generation was.
func (s *Scheduler) Done(name string) {
	for i, candidate := range s.pending {
		if candidate == name {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
