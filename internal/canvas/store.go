// Package canvas implements the replicated annotation layer for one chart
// surface: the shape store, pointer state machine, change emission, remote
// application and snapshot sync, driven through a disposable Controller.
package canvas

import (
	"sort"

	"advisory-canvas/internal/geometry"
	"advisory-canvas/internal/models"
)

type entry struct {
	shape *models.Shape
	prims []geometry.Primitive
}

// Store is an ordered, id-keyed shape collection for one chart. Z-order is
// insertion order; replacing a shape keeps its position.
//
// Store has no locking of its own. It is owned by a Controller, which
// serializes every mutation.
type Store struct {
	order   []string
	entries map[string]*entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Upsert inserts s, or replaces the shape with the same ID in place.
// Shapes without an ID are ignored.
func (s *Store) Upsert(shape *models.Shape) {
	if shape == nil || shape.ID == "" {
		return
	}
	shape = shape.Clone()
	shape.Transform = shape.Transform.Normalize()
	e := &entry{shape: shape, prims: geometry.Compile(shape)}
	if _, ok := s.entries[shape.ID]; !ok {
		s.order = append(s.order, shape.ID)
	}
	s.entries[shape.ID] = e
}

// Remove deletes the shape with id. It reports whether anything was removed.
func (s *Store) Remove(id string) bool {
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the store and returns how many shapes were dropped.
func (s *Store) Clear() int {
	n := len(s.order)
	s.order = nil
	s.entries = make(map[string]*entry)
	return n
}

// Replace overwrites the whole store with shapes, in order.
func (s *Store) Replace(shapes []*models.Shape) {
	s.Clear()
	for _, shape := range shapes {
		s.Upsert(shape)
	}
}

// List returns copies of every shape in z-order.
func (s *Store) List() []*models.Shape {
	out := make([]*models.Shape, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].shape.Clone())
	}
	return out
}

// Get returns a copy of the shape with id.
func (s *Store) Get(id string) (*models.Shape, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.shape.Clone(), true
}

// Len returns the number of shapes.
func (s *Store) Len() int {
	return len(s.order)
}

// Last returns the topmost shape.
func (s *Store) Last() (*models.Shape, bool) {
	if len(s.order) == 0 {
		return nil, false
	}
	return s.Get(s.order[len(s.order)-1])
}

// TopmostAt returns the ID of the highest shape hit by p.
func (s *Store) TopmostAt(p models.Point, tolerance float64) (string, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.entries[s.order[i]]
		if geometry.HitTest(e.shape, p, tolerance) {
			return e.shape.ID, true
		}
	}
	return "", false
}

// Primitives returns the render list in z-order.
func (s *Store) Primitives() []geometry.Primitive {
	var out []geometry.Primitive
	for _, id := range s.order {
		out = append(out, s.entries[id].prims...)
	}
	return out
}

// Registry holds one Store per chart so switching charts keeps the
// annotations of previously visited ones.
type Registry struct {
	stores map[models.ChartKey]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[models.ChartKey]*Store)}
}

// Store returns the store for key, creating it on first use.
func (r *Registry) Store(key models.ChartKey) *Store {
	st, ok := r.stores[key]
	if !ok {
		st = NewStore()
		r.stores[key] = st
	}
	return st
}

// Lookup returns the store for key without creating one.
func (r *Registry) Lookup(key models.ChartKey) (*Store, bool) {
	st, ok := r.stores[key]
	return st, ok
}

// Keys returns every chart with a store, sorted by TICKER:PERIOD.
func (r *Registry) Keys() []models.ChartKey {
	keys := make([]models.ChartKey, 0, len(r.stores))
	for k := range r.stores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
