package editor

import (
	"slices"

	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/annotate"
	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/transform"
)

type gestureKind int

const (
	gestureMove gestureKind = iota + 1
	gestureScale
	gestureRotate
	gesturePan
	gestureDraw
)

// gesture is the state of one bracketed pointer interaction.
type gesture struct {
	kind    gestureKind
	targets []string
	start   map[string]document.Transform
	styles  map[string]document.TextStyle
	texts   map[string]document.TextOverride
	bounds  geometry.Rect // union of target rects at start, content pixels
	pointer geometry.Point
	panFrom geometry.Point
	moved   bool
}

func (g *gesture) transforms() bool {
	return g != nil && (g.kind == gestureMove || g.kind == gestureScale || g.kind == gestureRotate)
}

// MoveTargets returns the selected elements a transform gesture applies to.
func (e *Editor) MoveTargets() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTargetsLocked()
}

// moveTargetsLocked keeps selected elements that are live, visible and
// unlocked, minus those nested under another target.
func (e *Editor) moveTargetsLocked() []string {
	var ids []string
	for _, id := range e.sel.IDs() {
		if _, known := e.byID[id]; known && e.layers.Movable(id) {
			ids = append(ids, id)
		}
	}
	nested := make(map[string]bool)
	for _, id := range ids {
		for _, d := range e.surface.Descendants(id) {
			nested[d] = true
		}
	}
	return slices.DeleteFunc(ids, func(id string) bool { return nested[id] })
}

func (e *Editor) beginTransformLocked(kind gestureKind) bool {
	if e.gesture != nil {
		e.endGestureLocked()
	}
	targets := e.moveTargetsLocked()
	if len(targets) == 0 {
		return false
	}
	g := &gesture{
		kind:    kind,
		targets: targets,
		start:   make(map[string]document.Transform, len(targets)),
		styles:  make(map[string]document.TextStyle, len(targets)),
	}
	first := true
	for _, id := range targets {
		g.start[id] = e.transforms.Get(id)
		g.styles[id] = e.text.StyleFor(id)
		if r, ok := e.contentRect(id); ok {
			if first {
				g.bounds, first = r, false
			} else {
				g.bounds = g.bounds.Union(r)
			}
		}
		if kind == gestureScale {
			e.engine.BeginScale(e.byID[id], g.start[id], g.styles[id])
		}
	}
	if kind == gestureScale {
		g.texts = e.text.Snapshot()
	}
	e.gesture = g
	return true
}

func (e *Editor) applyLocked(id string, changes transform.Changes) {
	el, ok := e.byID[id]
	if !ok {
		return
	}
	res := e.engine.ApplyTransform(transform.Request{
		Element:   el,
		Current:   e.transforms.Get(id),
		Next:      changes,
		TextStyle: e.text.StyleFor(id),
	})
	e.transforms.Set(id, res.Transform)
	if res.TextStyle != nil {
		e.text.SetStyle(id, document.TextStyle{FontSize: res.TextStyle.FontSize})
	}
}

func (e *Editor) BeginMove() bool {
	var ok bool
	e.do(func() { ok = e.beginTransformLocked(gestureMove) })
	return ok
}

// Move offsets every target by (dx, dy) content pixels from where the
// gesture started, snapping the moved bounds to guides.
func (e *Editor) Move(dx, dy float64) {
	e.do(func() { e.moveLocked(dx, dy, true) })
}

func (e *Editor) moveLocked(dx, dy float64, snap bool) {
	g := e.gesture
	if g == nil || g.kind != gestureMove {
		return
	}
	if !geometry.IsFinite(dx) || !geometry.IsFinite(dy) {
		return
	}
	if snap {
		sx, sy := e.guides.SnapRect(g.bounds.Translate(dx, dy), e.snap)
		dx, dy = dx+sx, dy+sy
	}
	for _, id := range g.targets {
		e.applyLocked(id, transform.Translate(g.start[id], dx, dy))
	}
	g.moved = true
	e.reconcileLocked("")
}

func (e *Editor) EndMove() {
	e.do(func() { e.endGestureLocked() })
}

func (e *Editor) BeginScale() bool {
	var ok bool
	e.do(func() { ok = e.beginTransformLocked(gestureScale) })
	return ok
}

// Scale multiplies the start scale of every target by (sx, sy).
func (e *Editor) Scale(sx, sy float64) {
	e.do(func() { e.scaleLocked(sx, sy) })
}

func (e *Editor) scaleLocked(sx, sy float64) {
	g := e.gesture
	if g == nil || g.kind != gestureScale {
		return
	}
	for _, id := range g.targets {
		start := g.start[id]
		e.applyLocked(id, transform.Changes{
			transform.KeyScaleX: start.ScaleX * sx,
			transform.KeyScaleY: start.ScaleY * sy,
		})
	}
	g.moved = true
	e.reconcileLocked("")
}

func (e *Editor) EndScale() {
	e.do(func() { e.endGestureLocked() })
}

func (e *Editor) BeginRotate() bool {
	var ok bool
	e.do(func() { ok = e.beginTransformLocked(gestureRotate) })
	return ok
}

// Rotate adds degrees to the start rotation of every target.
func (e *Editor) Rotate(degrees float64) {
	e.do(func() { e.rotateLocked(degrees) })
}

func (e *Editor) rotateLocked(degrees float64) {
	g := e.gesture
	if g == nil || g.kind != gestureRotate {
		return
	}
	for _, id := range g.targets {
		e.applyLocked(id, transform.Changes{transform.KeyRotate: g.start[id].Rotate + degrees})
	}
	g.moved = true
	e.reconcileLocked("")
}

func (e *Editor) EndRotate() {
	e.do(func() { e.endGestureLocked() })
}

// endGestureLocked closes the open gesture and keeps its result.
func (e *Editor) endGestureLocked() {
	g := e.gesture
	if g == nil {
		return
	}
	e.gesture = nil

	label := ""
	switch g.kind {
	case gestureMove:
		label = "Move"
	case gestureScale:
		label = "Scale"
		for _, id := range g.targets {
			e.engine.EndScale(e.byID[id])
		}
	case gestureRotate:
		label = "Rotate"
	case gestureDraw:
		e.finishDrawLocked()
		return
	case gesturePan:
		return
	}
	if !g.moved {
		label = ""
	}
	e.reconcileLocked(label)
}

// cancelGestureLocked closes the open gesture and reverts it.
func (e *Editor) cancelGestureLocked() bool {
	g := e.gesture
	if g == nil {
		return false
	}
	e.gesture = nil
	switch g.kind {
	case gestureMove, gestureScale, gestureRotate:
		for _, id := range g.targets {
			e.transforms.Set(id, g.start[id])
			if g.kind == gestureScale {
				e.engine.EndScale(e.byID[id])
			}
		}
		if g.kind == gestureScale {
			e.text.Load(g.texts)
		}
		e.reconcileLocked("")
	case gesturePan:
		e.pan = g.panFrom
		e.surface.SetViewport(e.zoom, e.pan)
		e.queue(Event{Kind: EventViewport})
	case gestureDraw:
		e.notes.CancelDraw()
		e.queue(Event{Kind: EventState})
	}
	e.log.Debug("gesture cancelled", zap.Int("kind", int(g.kind)))
	return true
}

// finishDrawLocked closes the open drawing and highlights the layers it
// encloses. It reports false when the shape was too small to keep.
func (e *Editor) finishDrawLocked() (document.Annotation, bool) {
	a, ok := e.notes.EndDraw()
	if !ok {
		e.queue(Event{Kind: EventState})
		return document.Annotation{}, false
	}
	hits := annotate.HitIDs(a, e.layers.LiveIDs(), func(id string) (geometry.Point, bool) {
		if !e.layers.Selectable(id) {
			return geometry.Point{}, false
		}
		return e.contentCenter(id)
	})
	e.layers.SetHighlighted(hits)
	e.reconcileLocked("Annotate")
	return a, true
}
