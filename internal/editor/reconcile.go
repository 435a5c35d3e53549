package editor

import (
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/nesting"
	"github.com/gemstudio/gem/editor-go/internal/stage"
)

// reconcileLocked writes the editable state through to the surface, grows
// containers around their children and, when label is set, tracks the change
// for history.
func (e *Editor) reconcileLocked(label string) {
	e.surface.SetViewport(e.zoom, e.pan)
	e.writeTransformsLocked()
	e.text.Apply()
	parents := e.resizeContainersLocked()
	e.writeClassesLocked(parents)

	if label != "" {
		e.history.Track(label)
	}
	e.queue(Event{Kind: EventState, Label: label})
}

func (e *Editor) writeTransformsLocked() {
	for _, el := range e.elements {
		t := e.transforms.Get(el.ID)
		if t.IsIdentity() {
			if e.written[el.ID] {
				e.surface.SetStyle(el.ID, stage.PropTransform, e.initial[el.ID])
				delete(e.written, el.ID)
			}
			continue
		}
		e.surface.SetStyle(el.ID, stage.PropTransform, stage.FormatTransform(t))
		e.written[el.ID] = true
	}
}

// resizeContainersLocked runs the container growth pass over live elements,
// leaving alone the targets of an open transform gesture. It returns the set
// of container ids.
func (e *Editor) resizeContainersLocked() map[string]bool {
	live := e.layers.LiveIDs()
	groups := nesting.Groups(e.nesting.Graph(live), live)

	var skip map[string]bool
	if e.gesture.transforms() {
		skip = make(map[string]bool, len(e.gesture.targets))
		for _, id := range e.gesture.targets {
			skip[id] = true
		}
	}

	changes := e.nesting.Resize(groups, e.transforms, e.viewport(), skip)
	for _, c := range changes {
		// gesture frames are relative to the start transform, so it carries the shift too
		if e.gesture.transforms() && (c.ShiftX != 0 || c.ShiftY != 0) {
			for _, child := range groups[c.ParentID] {
				if start, ok := e.gesture.start[child]; ok {
					start.X += c.ShiftX
					start.Y += c.ShiftY
					e.gesture.start[child] = start
				}
			}
		}
		e.log.Debug("container resized",
			zap.String("id", c.ParentID),
			zap.Float64("width", c.Width),
			zap.Float64("height", c.Height))
	}

	parents := make(map[string]bool, len(groups))
	for id := range groups {
		parents[id] = true
	}
	return parents
}

func (e *Editor) writeClassesLocked(parents map[string]bool) {
	for _, el := range e.elements {
		id := el.ID
		e.surface.SetClass(id, stage.ClassSelected, e.sel.Contains(id))
		e.surface.SetClass(id, stage.ClassHighlighted, e.layers.IsHighlighted(id))
		e.surface.SetClass(id, stage.ClassHidden, e.layers.IsHidden(id))
		e.surface.SetClass(id, stage.ClassLocked, e.layers.IsLocked(id))
		e.surface.SetClass(id, stage.ClassDeleted, e.layers.IsDeleted(id))
		e.surface.SetClass(id, stage.ClassNestingParent, parents[id])
	}
}

func (e *Editor) viewport() nesting.Viewport {
	return nesting.Viewport{Zoom: e.zoom, Pan: e.pan}
}

// Reconcile re-applies the current state to the surface, e.g. after the host
// re-rendered the mock-up.
func (e *Editor) Reconcile() {
	e.do(func() { e.reconcileLocked("") })
}
