package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

var (
	box     = document.Element{ID: "card", Kind: document.KindObject, Base: geometry.Rect{X: 10, Y: 10, Width: 200, Height: 100}}
	heading = document.Element{ID: "hero-title", Kind: document.KindText, Base: geometry.Rect{X: 20, Y: 20, Width: 100, Height: 40}}
)

func TestObjectStrategyMergesChanges(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))

	res := e.ApplyTransform(Request{
		Element: box,
		Current: document.Transform{X: 5, Y: 5, ScaleX: 1, ScaleY: 1, Rotate: 10},
		Next:    Changes{KeyScaleX: 2, KeyY: -3},
	})

	assert.Equal(t, document.Transform{X: 5, Y: -3, ScaleX: 2, ScaleY: 1, Rotate: 10}, res.Transform)
	assert.Nil(t, res.TextStyle)
}

func TestObjectInverseRestoresRect(t *testing.T) {
	e := NewEngine(nil)
	start := document.IdentityTransform()

	moved := e.ApplyTransform(Request{Element: box, Current: start, Next: Changes{KeyX: 15.37, KeyY: -5.2, KeyScaleX: 1.75, KeyScaleY: 0.4}})
	back := e.ApplyTransform(Request{Element: box, Current: moved.Transform, Next: Changes{
		KeyX:      moved.Transform.X - 15.37,
		KeyY:      moved.Transform.Y + 5.2,
		KeyScaleX: moved.Transform.ScaleX / 1.75,
		KeyScaleY: moved.Transform.ScaleY / 0.4,
	}})

	want := start.Apply(box.Base)
	got := back.Transform.Apply(box.Base)
	assert.InDelta(t, want.X, got.X, 0.1)
	assert.InDelta(t, want.Y, got.Y, 0.1)
	assert.InDelta(t, want.Width, got.Width, 0.1)
	assert.InDelta(t, want.Height, got.Height, 0.1)
}

func TestChangesIgnoreNonFinite(t *testing.T) {
	got := Changes{KeyX: math.NaN(), KeyY: 4}.ApplyTo(document.IdentityTransform())
	assert.Equal(t, document.Transform{Y: 4, ScaleX: 1, ScaleY: 1}, got)
	assert.False(t, Changes{KeyX: 1}.Scales())
	assert.True(t, Changes{KeyScaleY: 1}.Scales())
}

func TestTextScaleChangesFontSize(t *testing.T) {
	e := NewEngine(nil)
	style := document.TextStyle{FontSize: 24}
	current := document.IdentityTransform()

	e.BeginScale(heading, current, style)
	res := e.ApplyTransform(Request{Element: heading, Current: current, Next: Changes{KeyScaleX: 1.5, KeyScaleY: 1.5}, TextStyle: style})
	require.NotNil(t, res.TextStyle)
	assert.InDelta(t, 36, res.TextStyle.FontSize, 1e-9)
	assert.Equal(t, 1.0, res.Transform.ScaleX)
	assert.Equal(t, 1.0, res.Transform.ScaleY)

	// later frames of the same gesture are relative to the start, not the last frame
	res = e.ApplyTransform(Request{Element: heading, Current: res.Transform, Next: Changes{KeyScaleX: 2, KeyScaleY: 1}, TextStyle: *res.TextStyle})
	assert.InDelta(t, 36, res.TextStyle.FontSize, 1e-9)
	e.EndScale(heading)
}

func TestTextScaleRoundTrip(t *testing.T) {
	e := NewEngine(nil)
	style := document.TextStyle{FontSize: 18}
	current := document.IdentityTransform()

	for _, k := range []float64{1.6, 0.35, 3} {
		e.BeginScale(heading, current, style)
		up := e.ApplyTransform(Request{Element: heading, Current: current, Next: Changes{KeyScaleX: k, KeyScaleY: k}, TextStyle: style})
		e.EndScale(heading)
		assert.True(t, up.Transform.IsIdentity())

		e.BeginScale(heading, up.Transform, *up.TextStyle)
		down := e.ApplyTransform(Request{Element: heading, Current: up.Transform, Next: Changes{KeyScaleX: 1 / k, KeyScaleY: 1 / k}, TextStyle: *up.TextStyle})
		e.EndScale(heading)

		assert.True(t, down.Transform.IsIdentity())
		assert.InDelta(t, 18, down.TextStyle.FontSize, 1e-6, "k=%v", k)
	}
}

func TestTextMoveKeepsTypography(t *testing.T) {
	e := NewEngine(nil)
	res := e.ApplyTransform(Request{Element: heading, Current: document.IdentityTransform(), Next: Changes{KeyX: 15, KeyY: -5}})

	assert.Nil(t, res.TextStyle)
	assert.Equal(t, document.Transform{X: 15, Y: -5, ScaleX: 1, ScaleY: 1}, res.Transform)
}

func TestTextScaleWithoutBeginUsesImplicitBaseline(t *testing.T) {
	e := NewEngine(nil)
	res := e.ApplyTransform(Request{Element: heading, Current: document.IdentityTransform(), Next: Changes{KeyScaleX: 2}, TextStyle: document.TextStyle{}})

	require.NotNil(t, res.TextStyle)
	assert.InDelta(t, DefaultFontSize*1.5, res.TextStyle.FontSize, 1e-9)
	assert.True(t, e.text.Scaling(heading.ID))
	e.EndScale(heading)
	assert.False(t, e.text.Scaling(heading.ID))
}

func TestControlState(t *testing.T) {
	e := NewEngine(nil)

	assert.Equal(t, ControlState{Kind: ControlText, FontSize: 21.3},
		e.ControlState(heading, document.IdentityTransform(), document.TextStyle{FontSize: 21.26}))
	assert.Equal(t, ControlState{Kind: ControlText, FontSize: DefaultFontSize},
		e.ControlState(heading, document.IdentityTransform(), document.TextStyle{}))
	assert.Equal(t, ControlState{Kind: ControlObject, ScaleXPercent: 150, ScaleYPercent: 75},
		e.ControlState(box, document.Transform{ScaleX: 1.5, ScaleY: 0.75}, document.TextStyle{}))
}

func TestStore(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Get("x").IsIdentity())

	s.Set("a", document.Transform{X: 1, ScaleX: 1, ScaleY: 1})
	s.Set("b", document.IdentityTransform())
	assert.Len(t, s.Snapshot(), 1)

	s.Drop("a")
	assert.Empty(t, s.Snapshot())

	s.Load(map[string]document.Transform{"c": {Y: 2, ScaleX: 1, ScaleY: 1}, "d": document.IdentityTransform()})
	assert.Equal(t, map[string]document.Transform{"c": {Y: 2, ScaleX: 1, ScaleY: 1}}, s.Snapshot())
}
