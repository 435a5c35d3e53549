// Package transform applies per-element transform requests. Object elements
// scale freely; text elements convert scale gestures into font-size changes.
package transform

import (
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
)

// Engine dispatches requests to the strategy matching the element kind.
type Engine struct {
	object ObjectStrategy
	text   *TextStrategy
	log    *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		text: NewTextStrategy(),
		log:  logger.Named("transform"),
	}
}

// For returns the strategy for el. The kind is decided at capture time, so a
// gesture never switches strategy midway.
func (e *Engine) For(el document.Element) Strategy {
	if el.IsText() {
		return e.text
	}
	return e.object
}

func (e *Engine) ApplyTransform(req Request) Result {
	res := e.For(req.Element).Apply(req)
	res.Transform = res.Transform.Normalized()
	if res.TextStyle != nil {
		e.log.Debug("text scale",
			zap.String("id", req.Element.ID),
			zap.Float64("fontSize", res.TextStyle.FontSize))
	}
	return res
}

func (e *Engine) BeginScale(el document.Element, current document.Transform, style document.TextStyle) {
	e.For(el).BeginScale(el, current, style)
}

func (e *Engine) EndScale(el document.Element) {
	e.For(el).EndScale(el.ID)
}

func (e *Engine) ControlState(el document.Element, current document.Transform, style document.TextStyle) ControlState {
	return e.For(el).ControlState(el, current, style)
}
