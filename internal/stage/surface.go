// Package stage defines the boundary between the editor core and whatever
// renders the page mock-up. The core only reads live rectangles and writes
// style properties through a Surface; it never assumes a particular renderer.
package stage

import (
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

// IDAttribute is the attribute that marks an editable element in the mock-up.
const IDAttribute = "data-gem-id"

// Style properties written by the core.
const (
	PropTransform     = "transform"
	PropWidth         = "width"
	PropHeight        = "height"
	PropPosition      = "position"
	PropLeft          = "left"
	PropTop           = "top"
	PropFontSize      = "font-size"
	PropLineHeight    = "line-height"
	PropLetterSpacing = "letter-spacing"
	PropFontWeight    = "font-weight"
	PropFontFamily    = "font-family"
	PropTextAlign     = "text-align"
	PropTextTransform = "text-transform"
	PropColor         = "color"
)

// Presentation classes toggled for the rendering layer.
const (
	ClassSelected      = "is-selected"
	ClassHighlighted   = "is-highlighted"
	ClassHidden        = "is-layer-hidden"
	ClassLocked        = "is-layer-locked"
	ClassDeleted       = "is-layer-deleted"
	ClassNestingParent = "is-nesting-parent"
)

// Classes lists every presentation class the core manages.
var Classes = []string{
	ClassSelected, ClassHighlighted, ClassHidden, ClassLocked, ClassDeleted, ClassNestingParent,
}

// NodeInfo describes a tagged node at capture time.
type NodeInfo struct {
	ID       string
	Tag      string
	Text     string
	ParentID string // nearest tagged ancestor, or document.RootID
	Order    int    // index among tagged siblings
	Leaf     bool   // no tagged descendants
}

// Surface is the rendering boundary. Rects are reported in container pixels,
// i.e. after zoom and pan. Every method tolerates unknown ids: lookups report
// false and writes are ignored.
type Surface interface {
	// IDs lists tagged elements in document order.
	IDs() []string
	Node(id string) (NodeInfo, bool)
	Rect(id string) (geometry.Rect, bool)
	Style(id, prop string) (string, bool)
	SetStyle(id, prop, value string) bool
	SetText(id, text string) bool
	SetClass(id, class string, on bool) bool
	// Descendants lists tagged descendants of id in document order.
	Descendants(id string) []string
	// Reparent moves id under parentID (document.RootID for the stage root).
	Reparent(id, parentID string) bool
	SetViewport(zoom float64, pan geometry.Point)
}
