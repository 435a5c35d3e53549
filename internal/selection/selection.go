// Package selection holds the ordered set of selected element ids.
//
// A Selection is an immutable value: every operation returns a new Selection and
// leaves the receiver untouched. The first id is the primary selection.
package selection

import "slices"

type Selection struct {
	ids []string
}

// New returns a selection of ids with the first one as primary.
func New(ids ...string) Selection {
	return Selection{}.Update(ids, "")
}

// Update replaces the selection with ids, dropping duplicates while keeping the
// first occurrence order. The primary id (or the first id when primary is empty)
// is moved to the front.
func (s Selection) Update(ids []string, primary string) Selection {
	seen := make(map[string]bool, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	if primary != "" {
		out = append(out, primary)
		seen[primary] = true
	}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return Selection{}
	}
	return Selection{ids: out}
}

// Toggle removes id when selected, otherwise appends it.
func (s Selection) Toggle(id string) Selection {
	if id == "" {
		return s
	}
	if i := slices.Index(s.ids, id); i >= 0 {
		next := slices.Delete(slices.Clone(s.ids), i, i+1)
		if len(next) == 0 {
			return Selection{}
		}
		return Selection{ids: next}
	}
	return Selection{ids: append(slices.Clone(s.ids), id)}
}

// WithPrimary promotes id to primary, adding it when absent. An empty id clears
// the whole selection.
func (s Selection) WithPrimary(id string) Selection {
	if id == "" {
		return Selection{}
	}
	return s.Update(s.ids, id)
}

// Clear returns the empty selection.
func (s Selection) Clear() Selection {
	return Selection{}
}

// Without returns the selection minus every id for which drop returns true.
func (s Selection) Without(drop func(id string) bool) Selection {
	kept := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if !drop(id) {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(s.ids) {
		return s
	}
	return Selection{}.Update(kept, "")
}

// PrimaryID returns the first selected id, or "" when empty.
func (s Selection) PrimaryID() string {
	if len(s.ids) == 0 {
		return ""
	}
	return s.ids[0]
}

func (s Selection) IsEmpty() bool { return len(s.ids) == 0 }

func (s Selection) Len() int { return len(s.ids) }

// IDs returns a copy of the selected ids in order.
func (s Selection) IDs() []string {
	return slices.Clone(s.ids)
}

func (s Selection) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

// Equal reports whether both selections hold the same ids in the same order.
func (s Selection) Equal(other Selection) bool {
	return slices.Equal(s.ids, other.ids)
}
