// Package nesting keeps container elements large enough for the children they
// contain and handles explicit detach/reattach of nested elements.
package nesting

import (
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/stage"
	"github.com/gemstudio/gem/editor-go/internal/transform"
)

const (
	// sizeThreshold is the smallest growth, in content pixels, worth committing.
	sizeThreshold = 0.5
	// shiftThreshold is the smallest leading-edge shift worth committing.
	shiftThreshold = 0.1
)

// Size is a container's explicit layout size in content pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport converts container pixels to content pixels.
type Viewport struct {
	Zoom float64
	Pan  geometry.Point
}

func (v Viewport) zoom() float64 {
	return geometry.PositiveOr(v.Zoom, 1)
}

// Change describes one container growth applied by Resize.
type Change struct {
	ParentID string  `json:"parentId"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ShiftX   float64 `json:"shiftX"`
	ShiftY   float64 `json:"shiftY"`
}

type Manager struct {
	surface  stage.Surface
	bases    map[string]geometry.Rect
	sizes    map[string]Size
	detached map[string]string // id -> parent at detach time
	log      *zap.Logger
}

// NewManager creates a manager over surface. bases holds the captured content
// geometry of every element and is used as the starting size of containers.
func NewManager(surface stage.Surface, bases map[string]geometry.Rect, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		surface:  surface,
		bases:    maps.Clone(bases),
		sizes:    make(map[string]Size),
		detached: make(map[string]string),
		log:      logger.Named("nesting"),
	}
}

// Graph maps every candidate to its nearest containing candidate. Detached
// ids take no part in the graph.
func (m *Manager) Graph(candidates []string) map[string]string {
	live := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if _, gone := m.detached[id]; !gone {
			live[id] = true
		}
	}

	descendants := make(map[string]map[string]bool, len(live))
	for _, id := range candidates {
		if !live[id] {
			continue
		}
		set := make(map[string]bool)
		for _, d := range m.surface.Descendants(id) {
			if live[d] && d != id {
				set[d] = true
			}
		}
		descendants[id] = set
	}

	graph := make(map[string]string)
	for _, parent := range candidates {
		for child := range descendants[parent] {
			current, ok := graph[child]
			// a parent nested inside the current one is nearer to the child
			if !ok || descendants[current][parent] {
				graph[child] = parent
			}
		}
	}
	return graph
}

// Groups inverts a graph into parent -> children, children in candidate order.
func Groups(graph map[string]string, order []string) map[string][]string {
	groups := make(map[string][]string)
	for _, id := range order {
		if parent, ok := graph[id]; ok {
			groups[parent] = append(groups[parent], id)
		}
	}
	return groups
}

// Resize grows every container whose children overflow it. Parents listed in
// skip are left alone. Containers are processed innermost first so a grown
// child container is measured by its own parent in the same pass.
func (m *Manager) Resize(groups map[string][]string, transforms *transform.Store, view Viewport, skip map[string]bool) []Change {
	var changes []Change

	order := m.surface.IDs()
	for i := len(order) - 1; i >= 0; i-- {
		parent := order[i]
		children, ok := groups[parent]
		if !ok || skip[parent] {
			continue
		}
		if change, ok := m.growParent(parent, children, transforms, view); ok {
			changes = append(changes, change)
		}
	}
	return changes
}

func (m *Manager) growParent(parent string, children []string, transforms *transform.Store, view Viewport) (Change, bool) {
	pr, ok := m.surface.Rect(parent)
	if !ok {
		m.log.Debug("container not mounted", zap.String("id", parent))
		return Change{}, false
	}

	var left, right, top, bottom float64
	measured := children[:0:0]
	for _, child := range children {
		cr, ok := m.surface.Rect(child)
		if !ok {
			m.log.Debug("child not mounted", zap.String("id", child), zap.String("parent", parent))
			continue
		}
		measured = append(measured, child)
		left = max(left, pr.X-cr.X)
		right = max(right, cr.Right()-pr.Right())
		top = max(top, pr.Y-cr.Y)
		bottom = max(bottom, cr.Bottom()-pr.Bottom())
	}

	pt := transforms.Get(parent)
	kx := view.zoom() * nonZero(math.Abs(pt.ScaleX))
	ky := view.zoom() * nonZero(math.Abs(pt.ScaleY))
	left, right, top, bottom = left/kx, right/kx, top/ky, bottom/ky

	dw, dh := left+right, top+bottom
	if dw <= sizeThreshold && dh <= sizeThreshold {
		return Change{}, false
	}

	size := m.SizeOf(parent)
	if dw > sizeThreshold {
		size.Width += dw
		m.surface.SetStyle(parent, stage.PropWidth, stage.FormatPixels(size.Width))
	} else {
		left = 0
	}
	if dh > sizeThreshold {
		size.Height += dh
		m.surface.SetStyle(parent, stage.PropHeight, stage.FormatPixels(size.Height))
	} else {
		top = 0
	}
	m.sizes[parent] = size

	change := Change{ParentID: parent, Width: size.Width, Height: size.Height}
	if left > shiftThreshold || top > shiftThreshold {
		if left <= shiftThreshold {
			left = 0
		}
		if top <= shiftThreshold {
			top = 0
		}
		pt.X -= left
		pt.Y -= top
		m.setTransform(transforms, parent, pt)
		for _, child := range measured {
			ct := transforms.Get(child)
			ct.X += left
			ct.Y += top
			m.setTransform(transforms, child, ct)
		}
		change.ShiftX, change.ShiftY = left, top
	}

	m.log.Debug("container grown",
		zap.String("id", parent),
		zap.Float64("width", size.Width),
		zap.Float64("height", size.Height))
	return change, true
}

func (m *Manager) setTransform(transforms *transform.Store, id string, t document.Transform) {
	transforms.Set(id, t)
	m.surface.SetStyle(id, stage.PropTransform, stage.FormatTransform(t))
}

// SizeOf returns the explicit size of id, or its captured base size.
func (m *Manager) SizeOf(id string) Size {
	if s, ok := m.sizes[id]; ok {
		return s
	}
	b := m.bases[id]
	return Size{Width: b.Width, Height: b.Height}
}

// Sizes returns every container size set by Resize.
func (m *Manager) Sizes() map[string]Size {
	return maps.Clone(m.sizes)
}

// Drop forgets stored sizes and detach records of ids.
func (m *Manager) Drop(ids ...string) {
	for _, id := range ids {
		delete(m.sizes, id)
		delete(m.detached, id)
	}
}

// IsDetached reports whether id has been unlinked from its parent.
func (m *Manager) IsDetached(id string) bool {
	_, ok := m.detached[id]
	return ok
}

// Detached lists detached ids in sorted order.
func (m *Manager) Detached() []string {
	return slices.Sorted(maps.Keys(m.detached))
}

// Detach re-parents a nested element to the stage root, pins it with an
// absolute position and size, and corrects its transform so it stays where it
// was on screen. It reports whether anything changed.
func (m *Manager) Detach(id string, transforms *transform.Store, view Viewport) bool {
	info, ok := m.surface.Node(id)
	if !ok || info.ParentID == document.RootID || m.IsDetached(id) {
		return false
	}
	before, ok := m.surface.Rect(id)
	if !ok {
		return false
	}

	zoom := view.zoom()
	center := before.Center().Sub(view.Pan).Div(zoom)
	size := m.SizeOf(id)

	if !m.surface.Reparent(id, document.RootID) {
		return false
	}
	m.surface.SetStyle(id, stage.PropPosition, "absolute")
	m.surface.SetStyle(id, stage.PropLeft, stage.FormatPixels(center.X-size.Width/2))
	m.surface.SetStyle(id, stage.PropTop, stage.FormatPixels(center.Y-size.Height/2))
	m.surface.SetStyle(id, stage.PropWidth, stage.FormatPixels(size.Width))
	m.surface.SetStyle(id, stage.PropHeight, stage.FormatPixels(size.Height))

	m.keepCenter(id, before, transforms, zoom)
	m.detached[id] = info.ParentID
	m.log.Debug("detached", zap.String("id", id), zap.String("from", info.ParentID))
	return true
}

// Reattach moves a detached element back under its original parent and clears
// the absolute positioning overrides.
func (m *Manager) Reattach(id string, transforms *transform.Store, view Viewport) bool {
	parent, ok := m.detached[id]
	if !ok {
		return false
	}
	before, ok := m.surface.Rect(id)
	if !ok {
		return false
	}
	if !m.surface.Reparent(id, parent) {
		m.log.Debug("reattach parent missing", zap.String("id", id), zap.String("parent", parent))
		return false
	}
	for _, prop := range []string{stage.PropPosition, stage.PropLeft, stage.PropTop} {
		m.surface.SetStyle(id, prop, "")
	}
	if size, ok := m.sizes[id]; ok {
		m.surface.SetStyle(id, stage.PropWidth, stage.FormatPixels(size.Width))
		m.surface.SetStyle(id, stage.PropHeight, stage.FormatPixels(size.Height))
	} else {
		m.surface.SetStyle(id, stage.PropWidth, "")
		m.surface.SetStyle(id, stage.PropHeight, "")
	}

	m.keepCenter(id, before, transforms, view.zoom())
	delete(m.detached, id)
	m.log.Debug("reattached", zap.String("id", id), zap.String("to", parent))
	return true
}

// keepCenter shifts the transform of id so its rendered center matches before.
func (m *Manager) keepCenter(id string, before geometry.Rect, transforms *transform.Store, zoom float64) {
	after, ok := m.surface.Rect(id)
	if !ok {
		return
	}
	delta := before.Center().Sub(after.Center()).Div(zoom)
	if math.Abs(delta.X) <= shiftThreshold && math.Abs(delta.Y) <= shiftThreshold {
		return
	}
	t := transforms.Get(id)
	t.X += delta.X
	t.Y += delta.Y
	m.setTransform(transforms, id, t)
}

func nonZero(v float64) float64 {
	if v == 0 || !geometry.IsFinite(v) {
		return 1
	}
	return v
}
