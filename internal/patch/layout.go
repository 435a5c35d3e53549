package patch

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

type Arrangement string

const (
	Single Arrangement = "single"
	Row    Arrangement = "row"
	Column Arrangement = "column"
	Grid   Arrangement = "grid"
)

// minSpread is the smallest center spread, in pixels, counted as an axis.
const minSpread = 2.0

// LayoutHint reports a sibling group whose arrangement changed.
type LayoutHint struct {
	ParentID   string      `json:"parentId"`
	IDs        []string    `json:"ids"`
	Before     Arrangement `json:"before"`
	After      Arrangement `json:"after"`
	Transition string      `json:"transition"`
}

// Classify names the arrangement of rects from the median absolute deviation
// of their centers on each axis. A spread below a quarter of the median
// element size on that axis does not count.
func Classify(rects []geometry.Rect) Arrangement {
	if len(rects) < 2 {
		return Single
	}
	xs := make([]float64, len(rects))
	ys := make([]float64, len(rects))
	ws := make([]float64, len(rects))
	hs := make([]float64, len(rects))
	for i, r := range rects {
		c := r.Center()
		xs[i], ys[i] = c.X, c.Y
		ws[i], hs[i] = math.Abs(r.Width), math.Abs(r.Height)
	}
	spreadX := geometry.MedianAbsoluteDeviation(xs) > math.Max(minSpread, geometry.Median(ws)/4)
	spreadY := geometry.MedianAbsoluteDeviation(ys) > math.Max(minSpread, geometry.Median(hs)/4)

	switch {
	case spreadX && spreadY:
		return Grid
	case spreadX:
		return Row
	case spreadY:
		return Column
	default:
		return Single
	}
}

// LayoutHints groups live elements by parent and emits a hint for every group
// of two or more whose arrangement differs between base and edited geometry.
func LayoutHints(elements []document.Element, transforms map[string]document.Transform, deleted map[string]bool) []LayoutHint {
	groups := make(map[string][]document.Element)
	for _, el := range elements {
		if !deleted[el.ID] {
			groups[el.ParentID] = append(groups[el.ParentID], el)
		}
	}

	hints := []LayoutHint{}
	for _, parent := range slices.Sorted(maps.Keys(groups)) {
		group := groups[parent]
		if len(group) < 2 {
			continue
		}
		slices.SortStableFunc(group, func(a, b document.Element) int { return cmp.Compare(a.Order, b.Order) })

		before := make([]geometry.Rect, len(group))
		after := make([]geometry.Rect, len(group))
		ids := make([]string, len(group))
		for i, el := range group {
			t, ok := transforms[el.ID]
			if !ok {
				t = document.IdentityTransform()
			}
			ids[i] = el.ID
			before[i] = el.Base
			after[i] = t.Apply(el.Base)
		}
		b, a := Classify(before), Classify(after)
		if b == a {
			continue
		}
		hints = append(hints, LayoutHint{
			ParentID:   parent,
			IDs:        ids,
			Before:     b,
			After:      a,
			Transition: fmt.Sprintf("%s->%s", b, a),
		})
	}
	return hints
}
