package transform

import (
	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

// Keys accepted in Changes.
const (
	KeyX      = "x"
	KeyY      = "y"
	KeyScaleX = "scaleX"
	KeyScaleY = "scaleY"
	KeyRotate = "rotate"
)

// Changes is a partial transform: only the present keys are merged onto the
// current transform. Non-finite values are ignored.
type Changes map[string]float64

// ApplyTo returns t with every present field replaced.
func (c Changes) ApplyTo(t document.Transform) document.Transform {
	if v, ok := c.get(KeyX); ok {
		t.X = v
	}
	if v, ok := c.get(KeyY); ok {
		t.Y = v
	}
	if v, ok := c.get(KeyScaleX); ok {
		t.ScaleX = v
	}
	if v, ok := c.get(KeyScaleY); ok {
		t.ScaleY = v
	}
	if v, ok := c.get(KeyRotate); ok {
		t.Rotate = v
	}
	return t
}

// Scales reports whether the changes request a scale on either axis.
func (c Changes) Scales() bool {
	_, sx := c.get(KeyScaleX)
	_, sy := c.get(KeyScaleY)
	return sx || sy
}

func (c Changes) get(key string) (float64, bool) {
	v, ok := c[key]
	if !ok || !geometry.IsFinite(v) {
		return 0, false
	}
	return v, true
}

// Translate returns changes moving t by (dx, dy).
func Translate(t document.Transform, dx, dy float64) Changes {
	return Changes{KeyX: t.X + dx, KeyY: t.Y + dy}
}

// Full returns changes that set every field of t.
func Full(t document.Transform) Changes {
	return Changes{KeyX: t.X, KeyY: t.Y, KeyScaleX: t.ScaleX, KeyScaleY: t.ScaleY, KeyRotate: t.Rotate}
}
