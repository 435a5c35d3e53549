// Package patch derives the iteration patch handed to the generation pipeline.
package patch

import (
	"maps"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/nesting"
)

// Schema tags every patch document.
const Schema = "gem.iteration.patch/v1"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rotate float64 `json:"rotate"`
}

type Element struct {
	ID       string               `json:"id"`
	Tag      string               `json:"tag"`
	Kind     document.ElementKind `json:"kind"`
	ParentID string               `json:"parentId"`
	Order    int                  `json:"order"`
	Text     string               `json:"text,omitempty"`
	Base     Geometry             `json:"base"`
	Next     Geometry             `json:"next"`
}

type Layers struct {
	Locked  []string `json:"locked"`
	Hidden  []string `json:"hidden"`
	Deleted []string `json:"deleted"`
}

type Patch struct {
	Schema         string                           `json:"schema"`
	ToolMode       string                           `json:"toolMode"`
	GeneratedAt    time.Time                        `json:"generatedAt"`
	Elements       []Element                        `json:"elements"`
	Transforms     map[string]document.Transform    `json:"transforms"`
	Layers         Layers                           `json:"layers"`
	Folders        []document.Folder                `json:"folders"`
	Annotations    []document.Annotation            `json:"annotations"`
	TextOverrides  map[string]document.TextOverride `json:"textOverrides"`
	LayoutHints    []LayoutHint                     `json:"layoutHints"`
	ContainerSizes map[string]nesting.Size          `json:"containerSizes"`
	DetachedIDs    []string                         `json:"detachedIds"`
}

type Input struct {
	Elements       []document.Element
	Snapshot       document.Snapshot
	ToolMode       string
	GeneratedAt    time.Time
	ContainerSizes map[string]nesting.Size
	DetachedIDs    []string
}

// Build derives the patch from in. It has no side effects.
func Build(in Input) Patch {
	known := make(map[string]document.Element, len(in.Elements))
	for _, el := range in.Elements {
		known[el.ID] = el
	}
	snap := in.Snapshot.Clone()
	deleted := make(map[string]bool, len(snap.DeletedIDs))
	for _, id := range snap.DeletedIDs {
		deleted[id] = true
	}

	p := Patch{
		Schema:         Schema,
		ToolMode:       in.ToolMode,
		GeneratedAt:    in.GeneratedAt.UTC(),
		Elements:       make([]Element, 0, len(in.Elements)),
		Transforms:     make(map[string]document.Transform),
		Folders:        []document.Folder{},
		Annotations:    make([]document.Annotation, 0, len(snap.Annotations)),
		TextOverrides:  make(map[string]document.TextOverride),
		ContainerSizes: make(map[string]nesting.Size),
		DetachedIDs:    []string{},
	}

	for id, t := range snap.Transforms {
		if _, ok := known[id]; !ok {
			continue
		}
		if r := roundTransform(t); !r.IsIdentity() {
			p.Transforms[id] = r
		}
	}

	for _, el := range in.Elements {
		t, ok := p.Transforms[el.ID]
		if !ok {
			t = document.IdentityTransform()
		}
		p.Elements = append(p.Elements, Element{
			ID:       el.ID,
			Tag:      el.Tag,
			Kind:     el.Kind,
			ParentID: el.ParentID,
			Order:    el.Order,
			Text:     el.Text,
			Base:     roundGeometry(el.Base, 0),
			Next:     roundGeometry(t.Apply(el.Base), t.Rotate),
		})
	}

	p.Layers = buildLayers(snap, known, deleted)
	p.Folders = buildFolders(snap, known, deleted)

	for _, a := range snap.Annotations {
		p.Annotations = append(p.Annotations, roundAnnotation(a))
	}
	for id, o := range snap.TextOverrides {
		if _, ok := known[id]; ok && !o.IsEmpty() {
			p.TextOverrides[id] = roundOverride(o)
		}
	}

	p.LayoutHints = LayoutHints(in.Elements, p.Transforms, deleted)

	for id, s := range in.ContainerSizes {
		if _, ok := known[id]; ok && !deleted[id] {
			p.ContainerSizes[id] = nesting.Size{Width: geometry.Round1(s.Width), Height: geometry.Round1(s.Height)}
		}
	}
	for _, id := range in.DetachedIDs {
		if _, ok := known[id]; ok && !slices.Contains(p.DetachedIDs, id) {
			p.DetachedIDs = append(p.DetachedIDs, id)
		}
	}
	slices.Sort(p.DetachedIDs)
	return p
}

func buildLayers(snap document.Snapshot, known map[string]document.Element, deleted map[string]bool) Layers {
	l := Layers{Locked: []string{}, Hidden: []string{}, Deleted: []string{}}
	for _, id := range slices.Sorted(maps.Keys(snap.LayerMeta)) {
		if _, ok := known[id]; !ok || deleted[id] {
			continue
		}
		m := snap.LayerMeta[id]
		if m.Locked {
			l.Locked = append(l.Locked, id)
		}
		if m.Hidden {
			l.Hidden = append(l.Hidden, id)
		}
	}
	for id := range deleted {
		if _, ok := known[id]; ok {
			l.Deleted = append(l.Deleted, id)
		}
	}
	slices.Sort(l.Deleted)
	return l
}

func buildFolders(snap document.Snapshot, known map[string]document.Element, deleted map[string]bool) []document.Folder {
	order := slices.Clone(snap.FolderOrder)
	for _, id := range slices.Sorted(maps.Keys(snap.Folders)) {
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	folders := []document.Folder{}
	seen := make(map[string]bool)
	for _, id := range order {
		f, ok := snap.Folders[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		f.LayerIDs = slices.DeleteFunc(f.LayerIDs, func(m string) bool {
			_, ok := known[m]
			return !ok || deleted[m]
		})
		folders = append(folders, f)
	}
	return folders
}

func roundTransform(t document.Transform) document.Transform {
	t = t.Normalized()
	return document.Transform{
		X:      geometry.Round1(t.X),
		Y:      geometry.Round1(t.Y),
		ScaleX: geometry.Round1(t.ScaleX),
		ScaleY: geometry.Round1(t.ScaleY),
		Rotate: geometry.Round1(t.Rotate),
	}
}

func roundGeometry(r geometry.Rect, rotate float64) Geometry {
	return Geometry{
		X:      geometry.Round1(r.X),
		Y:      geometry.Round1(r.Y),
		Width:  geometry.Round1(r.Width),
		Height: geometry.Round1(r.Height),
		Rotate: geometry.Round1(rotate),
	}
}

func roundAnnotation(a document.Annotation) document.Annotation {
	a.X = geometry.Round1(a.X)
	a.Y = geometry.Round1(a.Y)
	a.Radius = geometry.Round1(a.Radius)
	a.Note = strings.TrimSpace(a.Note)
	for i, pt := range a.Points {
		a.Points[i] = geometry.Point{X: geometry.Round1(pt.X), Y: geometry.Round1(pt.Y)}
	}
	return a
}

func roundOverride(o document.TextOverride) document.TextOverride {
	if o.Style != nil {
		s := *o.Style
		s.FontSize = geometry.Round1(s.FontSize)
		s.LineHeight = geometry.Round1(s.LineHeight)
		s.LetterSpacing = geometry.Round1(s.LetterSpacing)
		if s.Color != "" {
			s.Color = geometry.NormalizeColor(s.Color)
		}
		o.Style = &s
	}
	return o
}

// Encode serializes p with sorted map keys.
func Encode(p Patch) ([]byte, error) {
	return json.Marshal(p)
}

// EncodeIndent is Encode with two-space indentation.
func EncodeIndent(p Patch) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Decode parses a patch document.
func Decode(data []byte) (Patch, error) {
	var p Patch
	err := json.Unmarshal(data, &p)
	return p, err
}
