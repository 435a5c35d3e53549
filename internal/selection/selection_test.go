package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateDedupesAndPromotesPrimary(t *testing.T) {
	s := Selection{}.Update([]string{"a", "b", "a", "c", "b"}, "c")

	assert.Equal(t, []string{"c", "a", "b"}, s.IDs())
	assert.Equal(t, "c", s.PrimaryID())
}

func TestUpdateIsIdempotent(t *testing.T) {
	inputs := [][]string{
		{"a", "b", "c"},
		{"x", "x", "y"},
		{},
		{"", "q"},
	}
	for _, ids := range inputs {
		once := New("seed").Update(ids, "")
		twice := once.Update(ids, "")
		assert.True(t, once.Equal(twice), "ids %v", ids)
		assert.True(t, once.Equal(once.Update(once.IDs(), "")), "re-applying own ids")
	}
}

func TestToggle(t *testing.T) {
	s := New("a", "b")

	added := s.Toggle("c")
	assert.Equal(t, []string{"a", "b", "c"}, added.IDs())
	assert.Equal(t, []string{"a", "b"}, s.IDs(), "receiver is never mutated")

	removed := added.Toggle("a")
	assert.Equal(t, []string{"b", "c"}, removed.IDs())
	assert.Equal(t, "b", removed.PrimaryID())

	assert.True(t, New("a").Toggle("a").IsEmpty())
}

func TestWithPrimary(t *testing.T) {
	s := New("a", "b", "c")

	assert.Equal(t, []string{"b", "a", "c"}, s.WithPrimary("b").IDs())
	assert.Equal(t, []string{"z", "a", "b", "c"}, s.WithPrimary("z").IDs())
	assert.True(t, s.WithPrimary("").IsEmpty())
}

func TestWithoutAndClear(t *testing.T) {
	s := New("a", "b", "c")

	assert.Equal(t, []string{"a", "c"}, s.Without(func(id string) bool { return id == "b" }).IDs())
	assert.True(t, s.Without(func(string) bool { return false }).Equal(s))
	assert.True(t, s.Clear().IsEmpty())
	assert.Equal(t, "", s.Clear().PrimaryID())
}
