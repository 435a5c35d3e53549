package editor

import (
	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/selection"
)

type PointerType string

const (
	PointerDown   PointerType = "down"
	PointerMove   PointerType = "move"
	PointerUp     PointerType = "up"
	PointerLeave  PointerType = "leave"
	PointerCancel PointerType = "cancel"
)

// PointerEvent carries client coordinates.
type PointerEvent struct {
	Type  PointerType `json:"type"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Shift bool        `json:"shift,omitempty"`
	Ctrl  bool        `json:"ctrl,omitempty"`
	Meta  bool        `json:"meta,omitempty"`
	Alt   bool        `json:"alt,omitempty"`
}

func (ev PointerEvent) point() geometry.Point { return geometry.Point{X: ev.X, Y: ev.Y} }

// KeyEvent uses browser key names ("ArrowLeft", "z", "Escape").
type KeyEvent struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	// Editable is set when focus is inside a text control.
	Editable bool `json:"editable,omitempty"`
}

type WheelEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
	Ctrl   bool    `json:"ctrl,omitempty"`
	Meta   bool    `json:"meta,omitempty"`
}

// SetSelection replaces the selection with the selectable ids.
func (e *Editor) SetSelection(ids []string, primary string) {
	e.do(func() { e.setSelectionLocked(e.sel.Update(e.selectable(ids), e.selectableOrEmpty(primary))) })
}

func (e *Editor) Toggle(id string) {
	e.do(func() {
		if e.sel.Contains(id) || e.layers.Selectable(id) {
			e.setSelectionLocked(e.sel.Toggle(id))
		}
	})
}

// WithPrimary promotes id to primary. An empty id clears the selection.
func (e *Editor) WithPrimary(id string) {
	e.do(func() {
		if id != "" && !e.layers.Selectable(id) {
			return
		}
		e.setSelectionLocked(e.sel.WithPrimary(id))
	})
}

func (e *Editor) ClearSelection() {
	e.do(func() { e.setSelectionLocked(e.sel.Clear()) })
}

func (e *Editor) selectable(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if e.layers.Selectable(id) {
			out = append(out, id)
		}
	}
	return out
}

func (e *Editor) selectableOrEmpty(id string) string {
	if e.layers.Selectable(id) {
		return id
	}
	return ""
}

func (e *Editor) setSelectionLocked(next selection.Selection) {
	if next.Equal(e.sel) {
		return
	}
	e.sel = next
	e.queue(Event{Kind: EventSelection})
	e.reconcileLocked("")
}

func (e *Editor) SetTool(mode ToolMode) {
	e.do(func() { e.setToolLocked(mode) })
}

func (e *Editor) setToolLocked(mode ToolMode) {
	if !mode.Valid() || mode == e.tool {
		return
	}
	e.cancelGestureLocked()
	if mode != ToolText {
		e.text.Commit()
	}
	e.tool = mode
	e.queue(Event{Kind: EventTool})
}

// SetViewport sets zoom (clamped to [MinZoom, MaxZoom]) and pan.
func (e *Editor) SetViewport(zoom float64, pan geometry.Point) {
	e.do(func() { e.setViewportLocked(zoom, pan) })
}

func (e *Editor) setViewportLocked(zoom float64, pan geometry.Point) {
	zoom = clampZoom(zoom)
	pan = geometry.Point{X: geometry.FiniteOr(pan.X, e.pan.X), Y: geometry.FiniteOr(pan.Y, e.pan.Y)}
	if zoom == e.zoom && pan == e.pan {
		return
	}
	e.zoom, e.pan = zoom, pan
	e.surface.SetViewport(e.zoom, e.pan)
	e.queue(Event{Kind: EventViewport})
}

// SetOrigin records where the stage container sits in client coordinates.
func (e *Editor) SetOrigin(origin geometry.Point) {
	e.do(func() { e.origin = origin })
}

// zoomAtLocked changes zoom keeping the content point under client fixed.
func (e *Editor) zoomAtLocked(client geometry.Point, zoom float64) {
	zoom = clampZoom(zoom)
	content := e.toContent(client)
	local := client.Sub(e.origin)
	e.setViewportLocked(zoom, geometry.Point{X: local.X - content.X*zoom, Y: local.Y - content.Y*zoom})
}

// HandlePointer feeds one pointer event to the active tool.
func (e *Editor) HandlePointer(ev PointerEvent) {
	e.do(func() { e.handlePointerLocked(ev) })
}

func (e *Editor) handlePointerLocked(ev PointerEvent) {
	switch ev.Type {
	case PointerDown:
		e.pointerDownLocked(ev)
	case PointerMove:
		e.pointerMoveLocked(ev)
	case PointerUp, PointerLeave:
		e.endGestureLocked()
	case PointerCancel:
		if e.gesture != nil && e.gesture.kind == gestureDraw {
			e.cancelGestureLocked()
			return
		}
		e.endGestureLocked()
	}
}

func (e *Editor) pointerDownLocked(ev PointerEvent) {
	e.endGestureLocked()
	p := e.toContent(ev.point())

	switch e.tool {
	case ToolCursor:
		hit, ok := e.hitTest(p)
		if !ok {
			if !ev.Shift {
				e.setSelectionLocked(e.sel.Clear())
			}
			return
		}
		switch {
		case ev.Shift:
			e.setSelectionLocked(e.sel.Toggle(hit))
			return
		case e.sel.Contains(hit):
			e.setSelectionLocked(e.sel.WithPrimary(hit))
		default:
			e.setSelectionLocked(selection.New(hit))
		}
		if e.beginTransformLocked(gestureMove) {
			e.gesture.pointer = p
		}

	case ToolText:
		hit, ok := e.hitTest(p)
		if !ok {
			e.text.Commit()
			e.setSelectionLocked(e.sel.Clear())
			return
		}
		e.setSelectionLocked(selection.New(hit))
		if el := e.byID[hit]; el.IsText() {
			e.text.Begin(hit)
			e.queue(Event{Kind: EventState})
		}

	case ToolPencil, ToolNote:
		kind := document.AnnotationCircle
		if e.tool == ToolPencil {
			kind = document.AnnotationPencil
		}
		e.notes.BeginDraw(kind, p)
		e.gesture = &gesture{kind: gestureDraw, pointer: p}

	case ToolPan:
		e.gesture = &gesture{kind: gesturePan, pointer: ev.point(), panFrom: e.pan}

	case ToolZoom:
		factor := zoomStep
		if ev.Shift || ev.Alt {
			factor = 1 / zoomStep
		}
		e.zoomAtLocked(ev.point(), e.zoom*factor)
	}
}

func (e *Editor) pointerMoveLocked(ev PointerEvent) {
	g := e.gesture
	if g == nil {
		return
	}
	switch g.kind {
	case gestureMove:
		d := e.toContent(ev.point()).Sub(g.pointer)
		e.moveLocked(d.X, d.Y, !ev.Alt)
	case gestureDraw:
		e.notes.Draw(e.toContent(ev.point()))
		e.queue(Event{Kind: EventState})
	case gesturePan:
		d := ev.point().Sub(g.pointer)
		e.setViewportLocked(e.zoom, g.panFrom.Add(d))
	}
}

// HandleWheel zooms around the pointer with Ctrl/Cmd held and pans otherwise.
func (e *Editor) HandleWheel(ev WheelEvent) {
	e.do(func() {
		if !geometry.IsFinite(ev.DeltaX) || !geometry.IsFinite(ev.DeltaY) {
			return
		}
		if ev.Ctrl || ev.Meta {
			if ev.DeltaY == 0 {
				return
			}
			factor := wheelZoomStep
			if ev.DeltaY > 0 {
				factor = 1 / wheelZoomStep
			}
			e.zoomAtLocked(geometry.Point{X: ev.X, Y: ev.Y}, e.zoom*factor)
			return
		}
		e.setViewportLocked(e.zoom, geometry.Point{X: e.pan.X - ev.DeltaX, Y: e.pan.Y - ev.DeltaY})
	})
}

// HandleKey runs the command bound to ev. Events from editable controls are
// left to the control. It reports whether the event was consumed.
func (e *Editor) HandleKey(ev KeyEvent) bool {
	if ev.Editable {
		return false
	}
	cmd, ok := e.keymap.Lookup(ev)
	if !ok {
		return false
	}
	var err error
	e.do(func() { _, err = e.dispatchLocked(cmd) })
	return err == nil
}

// Undo steps back one history entry.
func (e *Editor) Undo() bool {
	var ok bool
	e.do(func() { ok = e.history.Undo(e.applySnapshotLocked) })
	return ok
}

func (e *Editor) Redo() bool {
	var ok bool
	e.do(func() { ok = e.history.Redo(e.applySnapshotLocked) })
	return ok
}

// Commit records a pending history change immediately.
func (e *Editor) Commit() bool {
	var ok bool
	e.do(func() {
		if ok = e.history.Flush(); ok {
			e.queue(Event{Kind: EventHistory})
		}
	})
	return ok
}

func (e *Editor) escapeLocked() {
	switch {
	case e.cancelGestureLocked():
	case e.textEditing():
		e.text.Cancel()
		e.reconcileLocked("")
	default:
		e.setSelectionLocked(e.sel.Clear())
	}
}

func (e *Editor) textEditing() bool {
	_, ok := e.text.Editing()
	return ok
}
