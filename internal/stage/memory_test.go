package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

func newCard(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, m.Add(Node{ID: "card", Tag: "DIV", Box: geometry.Rect{X: 0, Y: 0, Width: 200, Height: 100}}))
	require.NoError(t, m.Add(Node{ID: "title", Tag: "h2", Text: "Hi", ParentID: "card", Box: geometry.Rect{X: 10, Y: 10, Width: 80, Height: 20}}))
	require.NoError(t, m.Add(Node{ID: "cta", Tag: "a", ParentID: "card", Box: geometry.Rect{X: 10, Y: 50, Width: 60, Height: 30}}))
	require.NoError(t, m.Add(Node{ID: "footer", Tag: "footer", Box: geometry.Rect{X: 0, Y: 300, Width: 400, Height: 50}}))
	return m
}

func TestMemoryAddValidates(t *testing.T) {
	m := newCard(t)
	assert.Error(t, m.Add(Node{ID: "card"}))
	assert.Error(t, m.Add(Node{ID: "orphan", ParentID: "missing"}))
	assert.Error(t, m.Add(Node{ID: document.RootID}))
}

func TestMemoryTreeQueries(t *testing.T) {
	m := newCard(t)

	assert.Equal(t, []string{"card", "title", "cta", "footer"}, m.IDs())
	assert.Equal(t, []string{"title", "cta"}, m.Descendants("card"))
	assert.Nil(t, m.Descendants("nope"))

	info, ok := m.Node("cta")
	require.True(t, ok)
	assert.Equal(t, NodeInfo{ID: "cta", Tag: "a", ParentID: "card", Order: 1, Leaf: true}, info)

	card, _ := m.Node("card")
	assert.False(t, card.Leaf)
	assert.Equal(t, "div", card.Tag)
}

func TestMemoryRectInheritsParentTransform(t *testing.T) {
	m := newCard(t)
	m.SetStyle("card", PropTransform, FormatTransform(document.Transform{X: 30, Y: 5, ScaleX: 1, ScaleY: 1}))
	m.SetStyle("title", PropTransform, FormatTransform(document.Transform{X: 1, Y: 2, ScaleX: 1, ScaleY: 1}))

	r, ok := m.Rect("title")
	require.True(t, ok)
	assert.InDelta(t, 41, r.X, 1e-9)
	assert.InDelta(t, 17, r.Y, 1e-9)
	assert.InDelta(t, 80, r.Width, 1e-9)

	_, ok = m.Rect("ghost")
	assert.False(t, ok)
}

func TestMemoryRectScalesAroundCenter(t *testing.T) {
	m := newCard(t)
	m.SetStyle("cta", PropTransform, FormatTransform(document.Transform{ScaleX: 2, ScaleY: 2}))

	r, _ := m.Rect("cta")
	assert.InDelta(t, -20, r.X, 1e-9)
	assert.InDelta(t, 35, r.Y, 1e-9)
	assert.InDelta(t, 120, r.Width, 1e-9)
	assert.InDelta(t, 60, r.Height, 1e-9)
}

func TestMemoryViewportAndOverrides(t *testing.T) {
	m := newCard(t)
	m.SetViewport(2, geometry.Point{X: 5, Y: 7})

	r, _ := m.Rect("footer")
	assert.Equal(t, geometry.Rect{X: 5, Y: 607, Width: 800, Height: 100}, r)

	m.SetViewport(1, geometry.Point{})
	m.SetStyle("footer", PropWidth, "120px")
	m.SetStyle("footer", PropPosition, "absolute")
	m.SetStyle("footer", PropLeft, "12px")
	r, _ = m.Rect("footer")
	assert.Equal(t, geometry.Rect{X: 12, Y: 300, Width: 120, Height: 50}, r)

	m.SetStyle("footer", PropWidth, "")
	_, ok := m.Style("footer", PropWidth)
	assert.False(t, ok)
}

func TestMemoryReparent(t *testing.T) {
	m := newCard(t)

	assert.False(t, m.Reparent("card", "title"), "cannot move under own descendant")
	assert.False(t, m.Reparent("card", "card"))
	assert.False(t, m.Reparent("ghost", document.RootID))

	require.True(t, m.Reparent("cta", document.RootID))
	info, _ := m.Node("cta")
	assert.Equal(t, document.RootID, info.ParentID)
	assert.Equal(t, 2, info.Order)
	assert.Equal(t, []string{"title"}, m.Descendants("card"))

	require.True(t, m.Reparent("cta", "card"))
	assert.Equal(t, []string{"title", "cta"}, m.Descendants("card"))
	footer, _ := m.Node("footer")
	assert.Equal(t, 1, footer.Order)
}

func TestMemoryClassesAndText(t *testing.T) {
	m := newCard(t)

	assert.True(t, m.SetClass("title", ClassSelected, true))
	assert.True(t, m.HasClass("title", ClassSelected))
	m.SetClass("title", ClassSelected, false)
	assert.False(t, m.HasClass("title", ClassSelected))
	assert.False(t, m.SetClass("ghost", ClassSelected, true))

	m.SetText("title", "Hello")
	info, _ := m.Node("title")
	assert.Equal(t, "Hello", info.Text)
}

func TestParseTransform(t *testing.T) {
	got, ok := ParseTransform(FormatTransform(document.Transform{X: 1.5, Y: -2, ScaleX: 0.5, ScaleY: 3, Rotate: 45}))
	require.True(t, ok)
	assert.Equal(t, document.Transform{X: 1.5, Y: -2, ScaleX: 0.5, ScaleY: 3, Rotate: 45}, got)

	got, ok = ParseTransform("translateX(4px) scale(2)")
	require.True(t, ok)
	assert.Equal(t, document.Transform{X: 4, ScaleX: 2, ScaleY: 2}, got)

	got, ok = ParseTransform("none")
	assert.False(t, ok)
	assert.True(t, got.IsIdentity())

	got, _ = ParseTransform("translate(abc, 3px)")
	assert.Equal(t, 0.0, got.X)
	assert.Equal(t, 3.0, got.Y)
}

func TestParseInlineStyle(t *testing.T) {
	s := ParseInlineStyle("left: 10px; TOP:20px ; width:; color: #fff")
	assert.Equal(t, map[string]string{"left": "10px", "top": "20px", "color": "#fff"}, s)

	s = ParseInlineStyle(`font-family: "A;B", serif; /* x: y */ transform: translate(-4px, 2px); color: red`)
	assert.Equal(t, map[string]string{
		"font-family": `"A;B", serif`,
		"transform":   "translate(-4px, 2px)",
		"color":       "red",
	}, s)

	v, ok := ParsePixels(" 12.5px ")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
	_, ok = ParsePixels("auto")
	assert.False(t, ok)
	_, ok = ParsePixels("Inf")
	assert.False(t, ok)
}
