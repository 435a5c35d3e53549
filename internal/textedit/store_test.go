package textedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/stage"
)

func newStore(t *testing.T) (*Store, *stage.Memory) {
	t.Helper()
	s := stage.NewMemory()
	require.NoError(t, s.Add(stage.Node{
		ID: "hero-title", Tag: "h1", Text: "Welcome",
		Box: geometry.Rect{X: 20, Y: 20, Width: 100, Height: 40},
		Styles: map[string]string{
			stage.PropFontSize:   "32px",
			stage.PropLineHeight: "48px",
			stage.PropColor:      "#ABC",
		},
	}))
	require.NoError(t, s.Add(stage.Node{
		ID: "caption", Tag: "p", Text: "Fine print",
		Styles: map[string]string{stage.PropLineHeight: "normal"},
	}))
	return NewStore(s, zaptest.NewLogger(t)), s
}

func TestCapturedStyleAndFallbacks(t *testing.T) {
	store, _ := newStore(t)

	hero := store.StyleFor("hero-title")
	assert.Equal(t, 32.0, hero.FontSize)
	assert.InDelta(t, 1.5, hero.LineHeight, 1e-9)
	assert.Equal(t, "#aabbcc", hero.Color)

	caption := store.StyleFor("caption")
	assert.Equal(t, DefaultFontSize, caption.FontSize)
	assert.Equal(t, DefaultLineHeight, caption.LineHeight)

	assert.Equal(t, DefaultFontSize, store.StyleFor("missing").FontSize)
}

func TestCancelRestoresPriorOverride(t *testing.T) {
	store, _ := newStore(t)

	store.SetText("hero-title", "Hello")
	require.True(t, store.Begin("hero-title"))
	store.SetText("hero-title", "Scratch")
	store.SetStyle("hero-title", document.TextStyle{FontWeight: "700"})
	store.Cancel()

	o, ok := store.Get("hero-title")
	require.True(t, ok)
	assert.Equal(t, "Hello", *o.Text)
	assert.Nil(t, o.Style)
	_, editing := store.Editing()
	assert.False(t, editing)

	require.True(t, store.Begin("caption"))
	store.SetText("caption", "New print")
	store.Cancel()
	_, ok = store.Get("caption")
	assert.False(t, ok)
}

func TestCommitKeepsOverride(t *testing.T) {
	store, _ := newStore(t)

	require.True(t, store.Begin("hero-title"))
	store.SetText("hero-title", "Hi there")
	// another session commits the first
	require.True(t, store.Begin("caption"))
	id, ok := store.Editing()
	assert.True(t, ok)
	assert.Equal(t, "caption", id)
	assert.Equal(t, "Hi there", store.TextFor("hero-title"))

	id, ok = store.Commit()
	assert.True(t, ok)
	assert.Equal(t, "caption", id)
	assert.False(t, store.Begin("missing"))
}

func TestSetTextBackToBaseDropsOverride(t *testing.T) {
	store, _ := newStore(t)
	store.SetText("hero-title", "Other")
	store.SetText("hero-title", "Welcome")
	assert.Empty(t, store.Snapshot())
}

func TestStyleMergesAndApplies(t *testing.T) {
	store, surface := newStore(t)

	store.SetStyle("hero-title", document.TextStyle{FontSize: 40, Color: "rgb(255, 0, 0)"})
	store.SetStyle("hero-title", document.TextStyle{TextAlign: "center"})
	store.SetText("hero-title", "Launch")
	store.Apply()

	info, _ := surface.Node("hero-title")
	assert.Equal(t, "Launch", info.Text)
	size, _ := surface.Style("hero-title", stage.PropFontSize)
	assert.Equal(t, "40px", size)
	color, _ := surface.Style("hero-title", stage.PropColor)
	assert.Equal(t, "#ff0000", color)
	align, _ := surface.Style("hero-title", stage.PropTextAlign)
	assert.Equal(t, "center", align)

	store.Restore("hero-title")
	store.Apply()
	info, _ = surface.Node("hero-title")
	assert.Equal(t, "Welcome", info.Text)
	size, _ = surface.Style("hero-title", stage.PropFontSize)
	assert.Equal(t, "32px", size)
	_, ok := surface.Style("hero-title", stage.PropTextAlign)
	assert.False(t, ok)
}

func TestSnapshotLoadAndDrop(t *testing.T) {
	store, _ := newStore(t)
	text := "Saved"
	store.Load(map[string]document.TextOverride{
		"hero-title": {Text: &text},
		"caption":    {},
	})

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	*snap["hero-title"].Text = "mutated"
	assert.Equal(t, "Saved", store.TextFor("hero-title"))

	require.True(t, store.Begin("hero-title"))
	store.Drop("hero-title")
	assert.Empty(t, store.Snapshot())
	_, editing := store.Editing()
	assert.False(t, editing)
}

func TestNonFiniteStyleIgnored(t *testing.T) {
	store, _ := newStore(t)
	store.SetStyle("caption", document.TextStyle{FontSize: -3})
	assert.Equal(t, DefaultFontSize, store.StyleFor("caption").FontSize)
}
