package annotate

import (
	"math"
	"slices"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/typeid"
)

// Palette is cycled through as guides are added.
var Palette = []string{"#ff4d6d", "#3a86ff", "#06d6a0", "#ffbe0b", "#8338ec"}

type Guides struct {
	guides []document.Guide
	added  int
	newID  func() string
}

func NewGuides(newID func() string) *Guides {
	if newID == nil {
		newID = typeid.NewGuideID
	}
	return &Guides{newID: newID}
}

func (g *Guides) Add(axis document.GuideAxis, position float64) document.Guide {
	if axis != document.AxisHorizontal {
		axis = document.AxisVertical
	}
	guide := document.Guide{
		ID:       g.newID(),
		Axis:     axis,
		Position: geometry.FiniteOr(position, 0),
		Color:    Palette[g.added%len(Palette)],
	}
	g.added++
	g.guides = append(g.guides, guide)
	return guide
}

func (g *Guides) index(id string) int {
	return slices.IndexFunc(g.guides, func(d document.Guide) bool { return d.ID == id })
}

func (g *Guides) Move(id string, position float64) bool {
	i := g.index(id)
	if i < 0 || !geometry.IsFinite(position) {
		return false
	}
	g.guides[i].Position = position
	return true
}

func (g *Guides) Remove(id string) bool {
	i := g.index(id)
	if i < 0 {
		return false
	}
	g.guides = slices.Delete(g.guides, i, i+1)
	return true
}

func (g *Guides) List() []document.Guide {
	return slices.Clone(g.guides)
}

// Snap returns the guide position on axis nearest to value, if within threshold.
func (g *Guides) Snap(axis document.GuideAxis, value, threshold float64) (float64, bool) {
	best, found := 0.0, false
	bestDist := math.Inf(1)
	for _, d := range g.guides {
		if d.Axis != axis {
			continue
		}
		if dist := math.Abs(d.Position - value); dist <= threshold && dist < bestDist {
			best, bestDist, found = d.Position, dist, true
		}
	}
	return best, found
}

// SnapRect returns the offset that aligns the nearest edge or center of r with
// a guide. Vertical guides snap x, horizontal guides snap y.
func (g *Guides) SnapRect(r geometry.Rect, threshold float64) (dx, dy float64) {
	dx = g.snapAxis(document.AxisVertical, []float64{r.X, r.X + r.Width/2, r.Right()}, threshold)
	dy = g.snapAxis(document.AxisHorizontal, []float64{r.Y, r.Y + r.Height/2, r.Bottom()}, threshold)
	return dx, dy
}

func (g *Guides) snapAxis(axis document.GuideAxis, candidates []float64, threshold float64) float64 {
	offset, bestDist := 0.0, math.Inf(1)
	for _, v := range candidates {
		if pos, ok := g.Snap(axis, v, threshold); ok && math.Abs(pos-v) < bestDist {
			offset, bestDist = pos-v, math.Abs(pos-v)
		}
	}
	return offset
}
