// Package editor is the aggregate iteration editor. An Editor owns every piece
// of editable state for one session and serializes all transitions behind a
// single mutex; callers drive it with pointer, keyboard and wheel events or
// with serializable commands.
package editor

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/annotate"
	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/history"
	"github.com/gemstudio/gem/editor-go/internal/layers"
	"github.com/gemstudio/gem/editor-go/internal/nesting"
	"github.com/gemstudio/gem/editor-go/internal/patch"
	"github.com/gemstudio/gem/editor-go/internal/selection"
	"github.com/gemstudio/gem/editor-go/internal/stage"
	"github.com/gemstudio/gem/editor-go/internal/textedit"
	"github.com/gemstudio/gem/editor-go/internal/transform"
)

type ToolMode string

const (
	ToolCursor ToolMode = "cursor"
	ToolText   ToolMode = "text"
	ToolPencil ToolMode = "pencil"
	ToolNote   ToolMode = "note"
	ToolZoom   ToolMode = "zoom"
	ToolPan    ToolMode = "pan"
)

// Valid reports whether m is a known tool mode.
func (m ToolMode) Valid() bool {
	switch m {
	case ToolCursor, ToolText, ToolPencil, ToolNote, ToolZoom, ToolPan:
		return true
	}
	return false
}

const (
	MinZoom = 0.1
	MaxZoom = 8.0

	zoomStep             = 1.25
	wheelZoomStep        = 1.1
	defaultSnapThreshold = 6.0
)

type Options struct {
	Logger          *zap.Logger
	HistoryDebounce time.Duration
	HistoryLimit    int
	Scheduler       history.Scheduler
	Now             func() time.Time
	FolderIDs       func() string
	AnnotationIDs   func() string
	GuideIDs        func() string
	// SnapThreshold is the guide snapping distance in content pixels.
	SnapThreshold float64
}

type Editor struct {
	mu sync.Mutex

	surface  stage.Surface
	elements []document.Element
	byID     map[string]document.Element
	initial  map[string]string // inline transform at capture time
	written  map[string]bool

	sel    selection.Selection
	tool   ToolMode
	zoom   float64
	pan    geometry.Point
	origin geometry.Point
	snap   float64

	transforms *transform.Store
	engine     *transform.Engine
	text       *textedit.Store
	layers     *layers.Registry
	notes      *annotate.Layer
	guides     *annotate.Guides
	nesting    *nesting.Manager
	history    *history.Engine
	gesture    *gesture
	keymap     *Keymap
	now        func() time.Time

	subMu   sync.Mutex
	subs    []*subscriber
	pending []Event

	log *zap.Logger
}

// New captures every tagged element of surface as base geometry and returns
// an editor over it with default key bindings installed.
func New(surface stage.Surface, opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Editor{
		surface:    surface,
		byID:       make(map[string]document.Element),
		initial:    make(map[string]string),
		written:    make(map[string]bool),
		tool:       ToolCursor,
		zoom:       1,
		snap:       geometry.PositiveOr(opts.SnapThreshold, defaultSnapThreshold),
		transforms: transform.NewStore(),
		engine:     transform.NewEngine(logger),
		keymap:     NewKeymap(),
		now:        opts.Now,
		log:        logger.Named("editor"),
	}

	surface.SetViewport(1, geometry.Point{})
	bases := make(map[string]geometry.Rect)
	for _, id := range surface.IDs() {
		el, ok := e.capture(id)
		if !ok {
			continue
		}
		e.elements = append(e.elements, el)
		e.byID[id] = el
		bases[id] = el.Base
		if raw, ok := surface.Style(id, stage.PropTransform); ok {
			e.initial[id] = raw
		}
	}

	e.text = textedit.NewStore(surface, logger)
	e.nesting = nesting.NewManager(surface, bases, logger)

	var layerOpts []layers.Option
	if opts.FolderIDs != nil {
		layerOpts = append(layerOpts, layers.WithFolderIDs(opts.FolderIDs))
	}
	layerOpts = append(layerOpts, layers.WithDroppers(e.transforms, e.text, e.nesting))
	e.layers = layers.NewRegistry(e.elements, selectionRef{e}, logger, layerOpts...)

	var noteOpts []annotate.Option
	if opts.AnnotationIDs != nil {
		noteOpts = append(noteOpts, annotate.WithIDs(opts.AnnotationIDs))
	}
	e.notes = annotate.NewLayer(logger, noteOpts...)
	e.guides = annotate.NewGuides(opts.GuideIDs)

	e.history = history.New(e.captureLocked, history.Options{
		Debounce:  opts.HistoryDebounce,
		Limit:     opts.HistoryLimit,
		Scheduler: opts.Scheduler,
		Dispatch:  e.fromTimer,
		Now:       opts.Now,
		Logger:    logger,
	})
	e.history.Clear(e.captureLocked())
	e.bindDefaults()

	e.log.Info("editor ready", zap.Int("elements", len(e.elements)))
	return e
}

func (e *Editor) capture(id string) (document.Element, bool) {
	info, ok := e.surface.Node(id)
	if !ok {
		return document.Element{}, false
	}
	rect, ok := e.surface.Rect(id)
	if !ok {
		e.log.Debug("element not mounted at capture", zap.String("id", id))
		return document.Element{}, false
	}
	kind := document.KindObject
	if info.Leaf && strings.TrimSpace(info.Text) != "" {
		kind = document.KindText
	}
	return document.Element{
		ID:       id,
		Tag:      info.Tag,
		Kind:     kind,
		Text:     info.Text,
		ParentID: info.ParentID,
		Order:    info.Order,
		Base:     rect,
	}, true
}

// selectionRef hands the registry access to the live selection. Its methods
// run with the editor lock already held.
type selectionRef struct{ e *Editor }

func (r selectionRef) Selection() selection.Selection { return r.e.sel }

func (r selectionRef) SetSelection(s selection.Selection) {
	r.e.sel = s
	r.e.queue(Event{Kind: EventSelection})
}

// do runs fn under the lock and delivers the events it queued afterwards.
func (e *Editor) do(fn func()) {
	e.mu.Lock()
	fn()
	events := e.pending
	e.pending = nil
	e.mu.Unlock()
	e.notify(events)
}

// fromTimer runs a history timer callback under the editor lock.
func (e *Editor) fromTimer(f func()) {
	e.do(func() {
		f()
		e.queue(Event{Kind: EventHistory})
	})
}

// Close cancels a pending history commit.
func (e *Editor) Close() {
	e.do(e.history.Close)
}

func (e *Editor) captureLocked() document.Snapshot {
	snap := document.NewSnapshot()
	snap.Transforms = e.transforms.Snapshot()
	snap.TextOverrides = e.text.Snapshot()
	snap.Annotations = e.notes.List()
	e.layers.Fill(&snap)
	return snap.Clone()
}

func (e *Editor) applySnapshotLocked(snap document.Snapshot) {
	e.cancelGestureLocked()
	e.transforms.Load(snap.Transforms)
	e.text.Load(snap.TextOverrides)
	e.notes.Load(snap.Annotations)
	e.layers.Load(snap)
	e.sel = e.sel.Without(func(id string) bool { return !e.layers.Selectable(id) })
	e.queue(Event{Kind: EventSelection})
	e.reconcileLocked("")
	e.queue(Event{Kind: EventHistory})
}

// Snapshot returns the aggregate editable state.
func (e *Editor) Snapshot() document.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureLocked()
}

// Patch builds the iteration patch for the current state.
func (e *Editor) Patch() patch.Patch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patchLocked()
}

func (e *Editor) patchLocked() patch.Patch {
	return patch.Build(patch.Input{
		Elements:       slices.Clone(e.elements),
		Snapshot:       e.captureLocked(),
		ToolMode:       string(e.tool),
		GeneratedAt:    e.now(),
		ContainerSizes: e.nesting.Sizes(),
		DetachedIDs:    e.nesting.Detached(),
	})
}

// Elements returns the captured elements in document order.
func (e *Editor) Elements() []document.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.elements)
}

func (e *Editor) Element(id string) (document.Element, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	el, ok := e.byID[id]
	return el, ok
}

func (e *Editor) Transform(id string) document.Transform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transforms.Get(id)
}

// TextStyle returns the typography currently shown for id.
func (e *Editor) TextStyle(id string) document.TextStyle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text.StyleFor(id)
}

// ControlState describes the scale control of id for display.
func (e *Editor) ControlState(id string) (transform.ControlState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	el, ok := e.byID[id]
	if !ok {
		return transform.ControlState{}, false
	}
	return e.engine.ControlState(el, e.transforms.Get(id), e.text.StyleFor(id)), true
}

func (e *Editor) Selection() selection.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel
}

func (e *Editor) Tool() ToolMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

// Viewport returns the zoom level and pan offset.
func (e *Editor) Viewport() (float64, geometry.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoom, e.pan
}

// History lists the undo entries oldest first.
func (e *Editor) History() []history.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Entries()
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo() || e.history.Pending()
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

func (e *Editor) LayerEntries() []layers.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layers.LayerEntries()
}

func (e *Editor) FolderView() layers.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layers.FolderView()
}

func (e *Editor) Annotations() []document.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notes.List()
}

func (e *Editor) Guides() []document.Guide {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guides.List()
}

// Keymap returns the key bindings consulted by HandleKey.
func (e *Editor) Keymap() *Keymap {
	return e.keymap
}

// ClientToContent converts a client point to stage content coordinates.
func (e *Editor) ClientToContent(p geometry.Point) geometry.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toContent(p)
}

func (e *Editor) toContent(p geometry.Point) geometry.Point {
	return p.Sub(e.origin).Sub(e.pan).Div(e.zoom)
}

// contentRect returns the rendered rect of id in content coordinates.
func (e *Editor) contentRect(id string) (geometry.Rect, bool) {
	r, ok := e.surface.Rect(id)
	if !ok {
		return geometry.Rect{}, false
	}
	return geometry.Rect{
		X:      (r.X - e.pan.X) / e.zoom,
		Y:      (r.Y - e.pan.Y) / e.zoom,
		Width:  r.Width / e.zoom,
		Height: r.Height / e.zoom,
	}, true
}

func (e *Editor) contentCenter(id string) (geometry.Point, bool) {
	r, ok := e.contentRect(id)
	if !ok {
		return geometry.Point{}, false
	}
	return r.Center(), true
}

// HitTest returns the topmost selectable element under a content point.
func (e *Editor) HitTest(p geometry.Point) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hitTest(p)
}

func (e *Editor) hitTest(p geometry.Point) (string, bool) {
	ids := e.surface.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if !e.layers.Selectable(id) {
			continue
		}
		if r, ok := e.contentRect(id); ok && r.Contains(p) {
			return id, true
		}
	}
	return "", false
}

func clampZoom(z float64) float64 {
	if !geometry.IsFinite(z) || z <= 0 {
		return 1
	}
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}
