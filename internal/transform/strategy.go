package transform

import (
	"math"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

// DefaultFontSize is used when an element's font size cannot be read.
const DefaultFontSize = 16.0

// minFontSize keeps a shrinking gesture from collapsing text to nothing.
const minFontSize = 1.0

// Request asks a strategy to merge Next onto Current for one element.
type Request struct {
	Element   document.Element
	Current   document.Transform
	Next      Changes
	TextStyle document.TextStyle
}

// Result is the transform to store and, when typography changed, the new style.
type Result struct {
	Transform document.Transform
	TextStyle *document.TextStyle
}

type ControlKind string

const (
	ControlText   ControlKind = "text"
	ControlObject ControlKind = "object"
)

// ControlState is what the UI shows for the primary element's scale control.
type ControlState struct {
	Kind          ControlKind `json:"kind"`
	FontSize      float64     `json:"fontSize,omitempty"`
	ScaleXPercent float64     `json:"scaleXPercent,omitempty"`
	ScaleYPercent float64     `json:"scaleYPercent,omitempty"`
}

// Strategy applies transform requests for one kind of element.
type Strategy interface {
	Apply(req Request) Result
	BeginScale(el document.Element, current document.Transform, style document.TextStyle)
	EndScale(id string)
	ControlState(el document.Element, current document.Transform, style document.TextStyle) ControlState
}

// ObjectStrategy merges changes directly; scale is free on both axes.
type ObjectStrategy struct{}

func (ObjectStrategy) Apply(req Request) Result {
	return Result{Transform: req.Next.ApplyTo(req.Current)}
}

func (ObjectStrategy) BeginScale(document.Element, document.Transform, document.TextStyle) {}

func (ObjectStrategy) EndScale(string) {}

func (ObjectStrategy) ControlState(_ document.Element, current document.Transform, _ document.TextStyle) ControlState {
	return ControlState{
		Kind:          ControlObject,
		ScaleXPercent: math.Round(geometry.FiniteOr(current.ScaleX, 1) * 100),
		ScaleYPercent: math.Round(geometry.FiniteOr(current.ScaleY, 1) * 100),
	}
}

type scaleTracker struct {
	startScaleX   float64
	startScaleY   float64
	startFontSize float64
}

// TextStrategy turns scale requests into font-size changes. The stored scale
// stays frozen; the font size is recomputed from the ratio between the
// requested scale and the scale at the start of the gesture.
type TextStrategy struct {
	trackers map[string]scaleTracker
}

func NewTextStrategy() *TextStrategy {
	return &TextStrategy{trackers: make(map[string]scaleTracker)}
}

func (s *TextStrategy) BeginScale(el document.Element, current document.Transform, style document.TextStyle) {
	s.trackers[el.ID] = scaleTracker{
		startScaleX:   geometry.FiniteOr(current.ScaleX, 1),
		startScaleY:   geometry.FiniteOr(current.ScaleY, 1),
		startFontSize: geometry.PositiveOr(style.FontSize, DefaultFontSize),
	}
}

func (s *TextStrategy) EndScale(id string) {
	delete(s.trackers, id)
}

// Scaling reports whether a gesture is open for id.
func (s *TextStrategy) Scaling(id string) bool {
	_, ok := s.trackers[id]
	return ok
}

func (s *TextStrategy) Apply(req Request) Result {
	next := req.Next.ApplyTo(req.Current)
	if !req.Next.Scales() {
		return Result{Transform: next}
	}

	tracker, ok := s.trackers[req.Element.ID]
	if !ok {
		// No BeginScale: the current state becomes the baseline.
		s.BeginScale(req.Element, req.Current, req.TextStyle)
		tracker = s.trackers[req.Element.ID]
	}

	rx := ratio(next.ScaleX, tracker.startScaleX)
	ry := ratio(next.ScaleY, tracker.startScaleY)
	size := tracker.startFontSize * (math.Abs(rx) + math.Abs(ry)) / 2
	if !geometry.IsFinite(size) {
		size = tracker.startFontSize
	}

	next.ScaleX = req.Current.ScaleX
	next.ScaleY = req.Current.ScaleY

	style := req.TextStyle
	style.FontSize = max(size, minFontSize)
	return Result{Transform: next, TextStyle: &style}
}

func (s *TextStrategy) ControlState(_ document.Element, _ document.Transform, style document.TextStyle) ControlState {
	return ControlState{
		Kind:     ControlText,
		FontSize: geometry.Round1(geometry.PositiveOr(style.FontSize, DefaultFontSize)),
	}
}

func ratio(value, start float64) float64 {
	if start == 0 {
		return value
	}
	return value / start
}
