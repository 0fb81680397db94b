// Package store holds the entity records shared by every pipeline stage.
package store

import (
	"sort"

	"github.com/dpolishuk/docweave/internal/models"
)

// Store maps fully-qualified entity names to their records. It is not safe
// for concurrent use; the pipeline is sequential.
type Store struct {
	entities map[string]*models.Entity
	order    []string
}

func New() *Store {
	return &Store{entities: make(map[string]*models.Entity)}
}

// Add merges deps into the record for name, creating it if needed, and
// registers a stub for every dependency that has no record yet.
func (s *Store) Add(name string, deps ...string) *models.Entity {
	e := s.ensure(name)
	e.Dependencies = append(e.Dependencies, deps...)
	for _, dep := range deps {
		s.ensure(dep)
	}
	return e
}

// Update applies fn to the record for name, creating a stub first if needed.
func (s *Store) Update(name string, fn func(e *models.Entity)) *models.Entity {
	e := s.ensure(name)
	fn(e)
	return e
}

// Get returns a copy of the record for name, or a default stub when the
// name is unknown. It never fails.
func (s *Store) Get(name string) models.Entity {
	if e, ok := s.entities[name]; ok {
		return *e
	}
	return *models.NewEntity(name)
}

// Lookup returns the live record for name.
func (s *Store) Lookup(name string) (*models.Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

func (s *Store) Len() int {
	return len(s.order)
}

// Names returns every entity name in insertion order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Custom returns the records of project-defined entities in insertion order.
func (s *Store) Custom() []*models.Entity {
	return s.filter(func(e *models.Entity) bool { return e.IsCustom })
}

// References returns the records of external symbols in insertion order.
func (s *Store) References() []*models.Entity {
	return s.filter(func(e *models.Entity) bool { return !e.IsCustom })
}

// Documented returns custom entities that have documentation, sorted by name.
func (s *Store) Documented() []*models.Entity {
	out := s.filter(func(e *models.Entity) bool { return e.IsCustom && e.Documented() })
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DocumentedDependencies counts the dependencies of name that already carry
// documentation. Duplicated dependencies count once per occurrence.
func (s *Store) DocumentedDependencies(name string) int {
	e, ok := s.entities[name]
	if !ok {
		return 0
	}
	n := 0
	for _, dep := range e.Dependencies {
		if d, ok := s.entities[dep]; ok && d.Documented() {
			n++
		}
	}
	return n
}

// UndocumentedDependencies counts the dependencies of name still lacking
// documentation.
func (s *Store) UndocumentedDependencies(name string) int {
	e, ok := s.entities[name]
	if !ok {
		return 0
	}
	return len(e.Dependencies) - s.DocumentedDependencies(name)
}

func (s *Store) ensure(name string) *models.Entity {
	if e, ok := s.entities[name]; ok {
		return e
	}
	e := models.NewEntity(name)
	s.entities[name] = e
	s.order = append(s.order, name)
	return e
}

func (s *Store) filter(keep func(e *models.Entity) bool) []*models.Entity {
	var out []*models.Entity
	for _, name := range s.order {
		if e := s.entities[name]; keep(e) {
			out = append(out, e)
		}
	}
	return out
}
