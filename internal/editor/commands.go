package editor

import (
	"errors"
	"fmt"
	"slices"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/history"
	"github.com/gemstudio/gem/editor-go/internal/nesting"
	"github.com/gemstudio/gem/editor-go/internal/transform"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnknownCommand is returned by Dispatch for unrecognized command types.
var ErrUnknownCommand = errors.New("unknown command")

// Command types.
const (
	CmdSelect        = "selection.set"
	CmdToggle        = "selection.toggle"
	CmdPrimary       = "selection.primary"
	CmdClearSelected = "selection.clear"

	CmdTransform      = "transform.apply"
	CmdMove           = "transform.move"
	CmdNudge          = "transform.nudge"
	CmdScale          = "transform.scale"
	CmdRotate         = "transform.rotate"
	CmdResetTransform = "transform.reset"

	CmdTextSet     = "text.set"
	CmdTextStyle   = "text.style"
	CmdTextRestore = "text.restore"

	CmdLayerHide      = "layer.hide"
	CmdLayerLock      = "layer.lock"
	CmdLayerRename    = "layer.rename"
	CmdLayerDelete    = "layer.delete"
	CmdLayerHighlight = "layer.highlight"
	CmdLayerDetach    = "layer.detach"
	CmdLayerReattach  = "layer.reattach"

	CmdFolderCreate   = "folder.create"
	CmdFolderRename   = "folder.rename"
	CmdFolderRemove   = "folder.remove"
	CmdFolderCollapse = "folder.collapse"
	CmdFolderAdd      = "folder.add"
	CmdFolderUngroup  = "folder.ungroup"
	CmdFolderHide     = "folder.hide"
	CmdFolderLock     = "folder.lock"

	CmdAnnotationAdd    = "annotation.add"
	CmdAnnotationNote   = "annotation.note"
	CmdAnnotationDelete = "annotation.delete"

	CmdGuideAdd    = "guide.add"
	CmdGuideMove   = "guide.move"
	CmdGuideRemove = "guide.remove"

	CmdTool    = "tool.set"
	CmdZoom    = "viewport.zoom"
	CmdZoomIn  = "viewport.zoomIn"
	CmdZoomOut = "viewport.zoomOut"
	CmdPan     = "viewport.pan"
	CmdUndo    = "history.undo"
	CmdRedo    = "history.redo"
	CmdCommit  = "history.commit"
	CmdEscape  = "escape"
)

// Command is a serializable editor operation. Only the fields used by Type
// are read.
type Command struct {
	Type      string              `json:"type"`
	ElementID string              `json:"elementId,omitempty"`
	IDs       []string            `json:"ids,omitempty"`
	Primary   string              `json:"primary,omitempty"`
	Transform transform.Changes   `json:"transform,omitempty"`
	DX        float64             `json:"dx,omitempty"`
	DY        float64             `json:"dy,omitempty"`
	ScaleX    float64             `json:"scaleX,omitempty"`
	ScaleY    float64             `json:"scaleY,omitempty"`
	Rotate    float64             `json:"rotate,omitempty"`
	Text      *string             `json:"text,omitempty"`
	Style     *document.TextStyle `json:"style,omitempty"`
	Name      string              `json:"name,omitempty"`
	FolderID  string              `json:"folderId,omitempty"`
	Tool      ToolMode            `json:"tool,omitempty"`
	Zoom      float64             `json:"zoom,omitempty"`
	Pan       *geometry.Point     `json:"pan,omitempty"`

	AnnotationKind document.AnnotationKind `json:"annotationKind,omitempty"`
	Points         []geometry.Point        `json:"points,omitempty"`
	AnnotationID   string                  `json:"annotationId,omitempty"`
	Note           string                  `json:"note,omitempty"`

	Axis     document.GuideAxis `json:"axis,omitempty"`
	Position float64            `json:"position,omitempty"`
	GuideID  string             `json:"guideId,omitempty"`
}

// Result reports what a command produced.
type Result struct {
	CreatedID string `json:"createdId,omitempty"`
	Changed   bool   `json:"changed"`
}

// Dispatch executes cmd. Only unknown command types fail; operations on
// missing ids are no-ops.
func (e *Editor) Dispatch(cmd Command) (Result, error) {
	var (
		res Result
		err error
	)
	e.do(func() { res, err = e.dispatchLocked(cmd) })
	return res, err
}

func (e *Editor) dispatchLocked(cmd Command) (Result, error) {
	before := e.fingerprintLocked()
	res := Result{}

	switch cmd.Type {
	case CmdSelect:
		e.setSelectionLocked(e.sel.Update(e.selectable(cmd.IDs), e.selectableOrEmpty(cmd.Primary)))
	case CmdToggle:
		if e.sel.Contains(cmd.ElementID) || e.layers.Selectable(cmd.ElementID) {
			e.setSelectionLocked(e.sel.Toggle(cmd.ElementID))
		}
	case CmdPrimary:
		if cmd.ElementID == "" || e.layers.Selectable(cmd.ElementID) {
			e.setSelectionLocked(e.sel.WithPrimary(cmd.ElementID))
		}
	case CmdClearSelected:
		e.setSelectionLocked(e.sel.Clear())

	case CmdTransform:
		e.transformLocked(cmd.ElementID, cmd.Transform)
	case CmdMove, CmdNudge:
		if e.beginTransformLocked(gestureMove) {
			e.moveLocked(cmd.DX, cmd.DY, false)
			e.endGestureLocked()
		}
	case CmdScale:
		if e.beginTransformLocked(gestureScale) {
			e.scaleLocked(geometry.PositiveOr(cmd.ScaleX, 1), geometry.PositiveOr(cmd.ScaleY, 1))
			e.endGestureLocked()
		}
	case CmdRotate:
		if e.beginTransformLocked(gestureRotate) {
			e.rotateLocked(geometry.FiniteOr(cmd.Rotate, 0))
			e.endGestureLocked()
		}
	case CmdResetTransform:
		ids := cmd.IDs
		if len(ids) == 0 {
			ids = e.moveTargetsLocked()
		}
		ids = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return !e.layers.Movable(id) })
		e.transforms.Drop(ids...)
		e.reconcileLocked("Reset transform")

	case CmdTextSet:
		if cmd.Text != nil && e.known(cmd.ElementID) {
			e.text.SetText(cmd.ElementID, *cmd.Text)
			e.reconcileLocked("Edit text")
		}
	case CmdTextStyle:
		if cmd.Style != nil && e.known(cmd.ElementID) {
			e.text.SetStyle(cmd.ElementID, *cmd.Style)
			e.reconcileLocked("Text style")
		}
	case CmdTextRestore:
		e.text.Restore(cmd.ElementID)
		e.reconcileLocked("Restore text")

	case CmdLayerHide:
		e.layers.ToggleHidden(cmd.ElementID)
		e.reconcileLocked("Toggle visibility")
	case CmdLayerLock:
		e.layers.ToggleLocked(cmd.ElementID)
		e.reconcileLocked("Toggle lock")
	case CmdLayerRename:
		e.layers.RenameLayer(cmd.ElementID, cmd.Name)
		e.reconcileLocked("Rename layer")
	case CmdLayerDelete:
		e.cancelGestureLocked()
		if deleted := e.layers.DeleteSelected(); len(deleted) > 0 {
			e.log.Info("layers deleted", zap.Strings("ids", deleted))
			e.reconcileLocked("Delete")
		}
	case CmdLayerHighlight:
		e.layers.SetHighlighted(cmd.IDs)
		e.reconcileLocked("Highlight")
	case CmdLayerDetach:
		if e.layers.Live(cmd.ElementID) && e.nesting.Detach(cmd.ElementID, e.transforms, e.viewport()) {
			e.reconcileLocked("Detach")
		}
	case CmdLayerReattach:
		if e.nesting.Reattach(cmd.ElementID, e.transforms, e.viewport()) {
			e.reconcileLocked("Reattach")
		}

	case CmdFolderCreate:
		res.CreatedID = e.layers.CreateFolder(cmd.Name)
		e.reconcileLocked("Create folder")
	case CmdFolderRename:
		e.layers.RenameFolder(cmd.FolderID, cmd.Name)
		e.reconcileLocked("Rename folder")
	case CmdFolderRemove:
		e.layers.RemoveFolder(cmd.FolderID)
		e.reconcileLocked("Remove folder")
	case CmdFolderCollapse:
		e.layers.ToggleFolderCollapsed(cmd.FolderID)
		e.reconcileLocked("Collapse folder")
	case CmdFolderAdd:
		e.layers.AddSelectionToFolder(cmd.FolderID)
		e.reconcileLocked("Add to folder")
	case CmdFolderUngroup:
		e.layers.RemoveFromFolder(cmd.IDs...)
		e.reconcileLocked("Ungroup")
	case CmdFolderHide:
		e.layers.ToggleFolderHidden(cmd.FolderID)
		e.reconcileLocked("Toggle folder visibility")
	case CmdFolderLock:
		e.layers.ToggleFolderLocked(cmd.FolderID)
		e.reconcileLocked("Toggle folder lock")

	case CmdAnnotationAdd:
		res.CreatedID = e.addAnnotationLocked(cmd)
	case CmdAnnotationNote:
		if e.notes.SetNote(cmd.AnnotationID, cmd.Note) {
			e.reconcileLocked("Annotation note")
		}
	case CmdAnnotationDelete:
		if e.notes.Delete(cmd.AnnotationID) {
			e.reconcileLocked("Delete annotation")
		}

	case CmdGuideAdd:
		res.CreatedID = e.guides.Add(cmd.Axis, cmd.Position).ID
		e.queue(Event{Kind: EventState})
	case CmdGuideMove:
		e.guides.Move(cmd.GuideID, cmd.Position)
		e.queue(Event{Kind: EventState})
	case CmdGuideRemove:
		e.guides.Remove(cmd.GuideID)
		e.queue(Event{Kind: EventState})

	case CmdTool:
		e.setToolLocked(cmd.Tool)
	case CmdZoom:
		e.setViewportLocked(cmd.Zoom, e.pan)
	case CmdZoomIn:
		e.setViewportLocked(e.zoom*zoomStep, e.pan)
	case CmdZoomOut:
		e.setViewportLocked(e.zoom/zoomStep, e.pan)
	case CmdPan:
		if cmd.Pan != nil {
			e.setViewportLocked(e.zoom, *cmd.Pan)
		}
	case CmdUndo:
		e.history.Undo(e.applySnapshotLocked)
	case CmdRedo:
		e.history.Redo(e.applySnapshotLocked)
	case CmdCommit:
		if e.history.Flush() {
			e.queue(Event{Kind: EventHistory})
		}
	case CmdEscape:
		e.escapeLocked()

	default:
		return Result{}, fmt.Errorf("dispatch %q: %w", cmd.Type, ErrUnknownCommand)
	}

	res.Changed = e.fingerprintLocked() != before
	return res, nil
}

// stateKey is everything a command can change, history included.
type stateKey struct {
	Snapshot  string                  `json:"snapshot"`
	Selection []string                `json:"selection"`
	Primary   string                  `json:"primary"`
	Tool      ToolMode                `json:"tool"`
	Zoom      float64                 `json:"zoom"`
	Pan       geometry.Point          `json:"pan"`
	Guides    []document.Guide        `json:"guides"`
	Sizes     map[string]nesting.Size `json:"sizes"`
	Detached  []string                `json:"detached"`
	Editing   string                  `json:"editing"`
	Gesture   bool                    `json:"gesture"`
	History   []history.Item          `json:"history"`
}

func (e *Editor) fingerprintLocked() string {
	editing, _ := e.text.Editing()
	key := stateKey{
		Snapshot:  history.Signature(e.captureLocked()),
		Selection: e.sel.IDs(),
		Primary:   e.sel.PrimaryID(),
		Tool:      e.tool,
		Zoom:      e.zoom,
		Pan:       e.pan,
		Guides:    e.guides.List(),
		Sizes:     e.nesting.Sizes(),
		Detached:  e.nesting.Detached(),
		Editing:   editing,
		Gesture:   e.gesture != nil,
		History:   e.history.Entries(),
	}
	b, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return string(b)
}

func (e *Editor) known(id string) bool {
	_, ok := e.byID[id]
	return ok && e.layers.Live(id)
}

// transformLocked applies partial changes to one element outside a pointer
// gesture. Scale requests on text are bracketed so the font size follows.
func (e *Editor) transformLocked(id string, changes transform.Changes) {
	if len(changes) == 0 || !e.known(id) || !e.layers.Movable(id) {
		return
	}
	el := e.byID[id]
	scales := changes.Scales()
	if scales {
		e.engine.BeginScale(el, e.transforms.Get(id), e.text.StyleFor(id))
	}
	e.applyLocked(id, changes)
	if scales {
		e.engine.EndScale(el)
	}
	e.reconcileLocked("Transform")
}

// addAnnotationLocked replays a drawn shape: the first point starts the
// gesture and the rest extend it.
func (e *Editor) addAnnotationLocked(cmd Command) string {
	if len(cmd.Points) < 2 {
		return ""
	}
	e.endGestureLocked()
	e.notes.BeginDraw(cmd.AnnotationKind, cmd.Points[0])
	for _, p := range cmd.Points[1:] {
		e.notes.Draw(p)
	}
	a, ok := e.finishDrawLocked()
	if !ok {
		return ""
	}
	if cmd.Note != "" {
		e.notes.SetNote(a.ID, cmd.Note)
	}
	return a.ID
}
