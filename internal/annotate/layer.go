// Package annotate holds the overlay annotations drawn over the stage and the
// guide lines used for snapping.
package annotate

import (
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/typeid"
)

// MinRadius is the smallest annotation kept on release.
const MinRadius = 3.0

type draft struct {
	kind   document.AnnotationKind
	start  geometry.Point
	points []geometry.Point
}

type Option func(*Layer)

// WithIDs replaces the annotation id generator.
func WithIDs(next func() string) Option {
	return func(l *Layer) { l.newID = next }
}

// Layer holds annotations in creation order.
type Layer struct {
	annotations []document.Annotation
	draft       *draft
	newID       func() string
	log         *zap.Logger
}

func NewLayer(logger *zap.Logger, opts ...Option) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Layer{newID: typeid.NewAnnotationID, log: logger.Named("annotate")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BeginDraw starts a gesture at p in content coordinates.
func (l *Layer) BeginDraw(kind document.AnnotationKind, p geometry.Point) {
	if kind != document.AnnotationPencil {
		kind = document.AnnotationCircle
	}
	l.draft = &draft{kind: kind, start: p, points: []geometry.Point{p}}
}

// Drawing reports whether a gesture is open.
func (l *Layer) Drawing() bool { return l.draft != nil }

func (l *Layer) Draw(p geometry.Point) {
	if l.draft == nil || !geometry.IsFinite(p.X) || !geometry.IsFinite(p.Y) {
		return
	}
	if l.draft.kind == document.AnnotationCircle {
		l.draft.points = []geometry.Point{l.draft.start, p}
		return
	}
	l.draft.points = append(l.draft.points, p)
}

// Preview returns the shape the open gesture would create.
func (l *Layer) Preview() (document.Annotation, bool) {
	if l.draft == nil {
		return document.Annotation{}, false
	}
	return shape(*l.draft), true
}

func shape(d draft) document.Annotation {
	a := document.Annotation{Kind: d.kind}
	if d.kind == document.AnnotationCircle {
		a.X, a.Y = d.start.X, d.start.Y
		a.Radius = geometry.Distance(d.start, d.points[len(d.points)-1])
		return a
	}
	center := geometry.Centroid(d.points)
	a.X, a.Y = center.X, center.Y
	for _, p := range d.points {
		a.Radius = math.Max(a.Radius, geometry.Distance(center, p))
	}
	a.Points = slices.Clone(d.points)
	return a
}

// EndDraw closes the gesture. Shapes smaller than MinRadius are discarded.
func (l *Layer) EndDraw() (document.Annotation, bool) {
	if l.draft == nil {
		return document.Annotation{}, false
	}
	a := shape(*l.draft)
	l.draft = nil
	if a.Radius < MinRadius {
		return document.Annotation{}, false
	}
	a.ID = l.newID()
	l.annotations = append(l.annotations, a)
	l.log.Debug("annotation created", zap.String("id", a.ID), zap.String("kind", string(a.Kind)))
	return a.Clone(), true
}

func (l *Layer) CancelDraw() {
	l.draft = nil
}

func (l *Layer) index(id string) int {
	return slices.IndexFunc(l.annotations, func(a document.Annotation) bool { return a.ID == id })
}

func (l *Layer) SetNote(id, note string) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.annotations[i].Note = strings.TrimSpace(note)
	return true
}

func (l *Layer) Delete(id string) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.annotations = slices.Delete(l.annotations, i, i+1)
	return true
}

func (l *Layer) Get(id string) (document.Annotation, bool) {
	i := l.index(id)
	if i < 0 {
		return document.Annotation{}, false
	}
	return l.annotations[i].Clone(), true
}

func (l *Layer) List() []document.Annotation {
	out := make([]document.Annotation, 0, len(l.annotations))
	for _, a := range l.annotations {
		out = append(out, a.Clone())
	}
	return out
}

// Load replaces every annotation and drops an open gesture.
func (l *Layer) Load(annotations []document.Annotation) {
	l.annotations = make([]document.Annotation, 0, len(annotations))
	for _, a := range annotations {
		l.annotations = append(l.annotations, a.Clone())
	}
	l.draft = nil
}

// Contains reports whether p lies inside the annotation shape.
func Contains(a document.Annotation, p geometry.Point) bool {
	if a.Kind == document.AnnotationPencil && len(a.Points) >= 3 {
		return geometry.PointInPolygon(p, a.Points)
	}
	return geometry.Distance(geometry.Point{X: a.X, Y: a.Y}, p) <= a.Radius
}

// HitIDs returns, in order, the ids whose center lies inside a.
func HitIDs(a document.Annotation, ids []string, center func(id string) (geometry.Point, bool)) []string {
	var hits []string
	for _, id := range ids {
		if c, ok := center(id); ok && Contains(a, c) {
			hits = append(hits, id)
		}
	}
	return hits
}
