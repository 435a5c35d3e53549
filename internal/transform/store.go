package transform

import (
	"maps"

	"github.com/gemstudio/gem/editor-go/internal/document"
)

// Store holds the transform delta of every edited element.
type Store struct {
	transforms map[string]document.Transform
}

func NewStore() *Store {
	return &Store{transforms: make(map[string]document.Transform)}
}

// Get returns the stored transform, or identity.
func (s *Store) Get(id string) document.Transform {
	if t, ok := s.transforms[id]; ok {
		return t
	}
	return document.IdentityTransform()
}

// Set stores t; identity transforms are removed instead.
func (s *Store) Set(id string, t document.Transform) {
	if t.IsIdentity() {
		delete(s.transforms, id)
		return
	}
	s.transforms[id] = t
}

// Drop forgets the transforms of ids.
func (s *Store) Drop(ids ...string) {
	for _, id := range ids {
		delete(s.transforms, id)
	}
}

func (s *Store) Snapshot() map[string]document.Transform {
	return maps.Clone(s.transforms)
}

// Load replaces every stored transform.
func (s *Store) Load(transforms map[string]document.Transform) {
	s.transforms = make(map[string]document.Transform, len(transforms))
	for id, t := range transforms {
		s.Set(id, t)
	}
}
