package document

import (
	"maps"
	"slices"

	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

// RootID is the parent id of top-level elements.
const RootID = "root"

type ElementKind string

const (
	KindObject ElementKind = "object"
	KindText   ElementKind = "text"
)

// Element is a captured node of the rendered mock-up. Base is recorded once at
// mount time; every edit is expressed as a delta on top of it.
type Element struct {
	ID       string        `json:"id"`
	Tag      string        `json:"tag"`
	Kind     ElementKind   `json:"kind"`
	Text     string        `json:"text,omitempty"`
	ParentID string        `json:"parentId"`
	Order    int           `json:"order"`
	Base     geometry.Rect `json:"base"`
}

// IsText reports whether scale gestures on the element change typography.
func (e Element) IsText() bool {
	return e.Kind == KindText
}

type Transform struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Rotate float64 `json:"rotate"`
}

// IdentityTransform returns {0, 0, 1, 1, 0}.
func IdentityTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// IsIdentity reports whether every field equals the identity value.
func (t Transform) IsIdentity() bool {
	return t.X == 0 && t.Y == 0 && t.ScaleX == 1 && t.ScaleY == 1 && t.Rotate == 0
}

// Apply returns base moved by the translation with width/height multiplied by scale.
func (t Transform) Apply(base geometry.Rect) geometry.Rect {
	return geometry.Rect{
		X:      base.X + t.X,
		Y:      base.Y + t.Y,
		Width:  base.Width * t.ScaleX,
		Height: base.Height * t.ScaleY,
	}
}

// Normalized replaces non-finite fields with identity values.
func (t Transform) Normalized() Transform {
	return Transform{
		X:      geometry.FiniteOr(t.X, 0),
		Y:      geometry.FiniteOr(t.Y, 0),
		ScaleX: geometry.FiniteOr(t.ScaleX, 1),
		ScaleY: geometry.FiniteOr(t.ScaleY, 1),
		Rotate: geometry.FiniteOr(t.Rotate, 0),
	}
}

// TextStyle is the typography bag an override may replace. Zero values mean "unset".
type TextStyle struct {
	FontSize      float64 `json:"fontSize,omitempty"`
	LineHeight    float64 `json:"lineHeight,omitempty"`
	LetterSpacing float64 `json:"letterSpacing,omitempty"`
	FontWeight    string  `json:"fontWeight,omitempty"`
	FontFamily    string  `json:"fontFamily,omitempty"`
	TextAlign     string  `json:"textAlign,omitempty"`
	TextTransform string  `json:"textTransform,omitempty"`
	Color         string  `json:"color,omitempty"`
}

// Merge returns s with every set field of patch applied on top.
func (s TextStyle) Merge(patch TextStyle) TextStyle {
	if patch.FontSize != 0 {
		s.FontSize = patch.FontSize
	}
	if patch.LineHeight != 0 {
		s.LineHeight = patch.LineHeight
	}
	if patch.LetterSpacing != 0 {
		s.LetterSpacing = patch.LetterSpacing
	}
	if patch.FontWeight != "" {
		s.FontWeight = patch.FontWeight
	}
	if patch.FontFamily != "" {
		s.FontFamily = patch.FontFamily
	}
	if patch.TextAlign != "" {
		s.TextAlign = patch.TextAlign
	}
	if patch.TextTransform != "" {
		s.TextTransform = patch.TextTransform
	}
	if patch.Color != "" {
		s.Color = patch.Color
	}
	return s
}

// TextOverride replaces the captured text and/or typography of an element.
type TextOverride struct {
	Text  *string    `json:"text,omitempty"`
	Style *TextStyle `json:"style,omitempty"`
}

// IsEmpty reports whether the override carries nothing.
func (o TextOverride) IsEmpty() bool {
	return o.Text == nil && o.Style == nil
}

// Clone returns a copy that shares no pointers with o.
func (o TextOverride) Clone() TextOverride {
	var out TextOverride
	if o.Text != nil {
		text := *o.Text
		out.Text = &text
	}
	if o.Style != nil {
		style := *o.Style
		out.Style = &style
	}
	return out
}

type LayerMeta struct {
	Name   string `json:"name,omitempty"`
	Hidden bool   `json:"hidden"`
	Locked bool   `json:"locked"`
}

type Folder struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	LayerIDs  []string `json:"layerIds"`
	Collapsed bool     `json:"collapsed"`
}

// Clone returns a copy with its own member slice.
func (f Folder) Clone() Folder {
	f.LayerIDs = append([]string{}, f.LayerIDs...)
	return f
}

type AnnotationKind string

const (
	AnnotationCircle AnnotationKind = "circle"
	AnnotationPencil AnnotationKind = "pencil"
)

type Annotation struct {
	ID     string           `json:"id"`
	Kind   AnnotationKind   `json:"kind"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Radius float64          `json:"radius"`
	Note   string           `json:"note"`
	Points []geometry.Point `json:"points,omitempty"`
}

// Clone returns a copy with its own point slice.
func (a Annotation) Clone() Annotation {
	if a.Points != nil {
		a.Points = slices.Clone(a.Points)
	}
	return a
}

type GuideAxis string

const (
	AxisVertical   GuideAxis = "vertical"
	AxisHorizontal GuideAxis = "horizontal"
)

type Guide struct {
	ID       string    `json:"id"`
	Axis     GuideAxis `json:"axis"`
	Position float64   `json:"position"`
	Color    string    `json:"color"`
}

// Snapshot is the aggregate editable state tracked by history.
type Snapshot struct {
	Transforms     map[string]Transform    `json:"transforms"`
	TextOverrides  map[string]TextOverride `json:"textOverrides"`
	Annotations    []Annotation            `json:"annotations"`
	LayerMeta      map[string]LayerMeta    `json:"layerMeta"`
	Folders        map[string]Folder       `json:"folders"`
	FolderOrder    []string                `json:"folderOrder"`
	DeletedIDs     []string                `json:"deletedIds"`
	HighlightedIDs []string                `json:"highlightedIds"`
}

// NewSnapshot returns an empty snapshot with every collection allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Transforms:     map[string]Transform{},
		TextOverrides:  map[string]TextOverride{},
		Annotations:    []Annotation{},
		LayerMeta:      map[string]LayerMeta{},
		Folders:        map[string]Folder{},
		FolderOrder:    []string{},
		DeletedIDs:     []string{},
		HighlightedIDs: []string{},
	}
}

// Clone returns a deep copy. Nil collections come back empty so that two
// equivalent snapshots always serialize identically.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	maps.Copy(out.Transforms, s.Transforms)
	maps.Copy(out.LayerMeta, s.LayerMeta)
	for id, o := range s.TextOverrides {
		out.TextOverrides[id] = o.Clone()
	}
	for id, f := range s.Folders {
		out.Folders[id] = f.Clone()
	}
	for _, a := range s.Annotations {
		out.Annotations = append(out.Annotations, a.Clone())
	}
	out.FolderOrder = append(out.FolderOrder, s.FolderOrder...)
	out.DeletedIDs = append(out.DeletedIDs, s.DeletedIDs...)
	out.HighlightedIDs = append(out.HighlightedIDs, s.HighlightedIDs...)
	return out
}
