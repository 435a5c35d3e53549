// Package textedit holds per-element text and typography overrides and writes
// them through to the rendering surface.
package textedit

import (
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/stage"
)

// Fallbacks for typography that cannot be read from the surface.
const (
	DefaultFontSize   = 16.0
	DefaultLineHeight = 1.4
)

var styleProps = []string{
	stage.PropFontSize,
	stage.PropLineHeight,
	stage.PropLetterSpacing,
	stage.PropFontWeight,
	stage.PropFontFamily,
	stage.PropTextAlign,
	stage.PropTextTransform,
	stage.PropColor,
}

// captured is the text state of an element at load time.
type captured struct {
	text  string
	style document.TextStyle
	raw   map[string]string
}

type session struct {
	id    string
	prior document.TextOverride
	had   bool
}

type Store struct {
	surface   stage.Surface
	base      map[string]captured
	overrides map[string]document.TextOverride
	editing   *session
	log       *zap.Logger
}

// NewStore captures the text and typography of every element on surface.
func NewStore(surface stage.Surface, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		surface:   surface,
		base:      make(map[string]captured),
		overrides: make(map[string]document.TextOverride),
		log:       logger.Named("textedit"),
	}
	for _, id := range surface.IDs() {
		s.capture(id)
	}
	return s
}

func (s *Store) capture(id string) (captured, bool) {
	if c, ok := s.base[id]; ok {
		return c, true
	}
	info, ok := s.surface.Node(id)
	if !ok {
		return captured{}, false
	}
	c := captured{text: info.Text, raw: make(map[string]string)}
	for _, prop := range styleProps {
		if v, ok := s.surface.Style(id, prop); ok {
			c.raw[prop] = v
		}
	}
	c.style = readStyle(c.raw)
	s.base[id] = c
	return c, true
}

func readStyle(raw map[string]string) document.TextStyle {
	style := document.TextStyle{
		FontSize:      DefaultFontSize,
		LineHeight:    DefaultLineHeight,
		FontWeight:    raw[stage.PropFontWeight],
		FontFamily:    raw[stage.PropFontFamily],
		TextAlign:     raw[stage.PropTextAlign],
		TextTransform: raw[stage.PropTextTransform],
	}
	if v, ok := stage.ParsePixels(raw[stage.PropFontSize]); ok && v > 0 {
		style.FontSize = v
	}
	if lh := raw[stage.PropLineHeight]; lh != "" {
		if v, ok := stage.ParsePixels(lh); ok && v > 0 {
			// pixel line heights are kept as a multiple of the font size
			if strings.HasSuffix(strings.TrimSpace(lh), "px") {
				v /= style.FontSize
			}
			style.LineHeight = v
		}
	}
	if v, ok := stage.ParsePixels(raw[stage.PropLetterSpacing]); ok {
		style.LetterSpacing = v
	}
	if c := raw[stage.PropColor]; c != "" {
		style.Color = geometry.NormalizeColor(c)
	}
	return style
}

// Begin opens an edit session on id, remembering its override so Cancel can
// put it back. An open session on another element is committed first.
func (s *Store) Begin(id string) bool {
	if _, ok := s.capture(id); !ok {
		s.log.Debug("text edit on missing node", zap.String("id", id))
		return false
	}
	if s.editing != nil {
		if s.editing.id == id {
			return true
		}
		s.Commit()
	}
	prior, had := s.overrides[id]
	s.editing = &session{id: id, prior: prior.Clone(), had: had}
	return true
}

// Editing returns the id of the open session.
func (s *Store) Editing() (string, bool) {
	if s.editing == nil {
		return "", false
	}
	return s.editing.id, true
}

// SetText replaces the text of id.
func (s *Store) SetText(id, text string) {
	c, ok := s.capture(id)
	if !ok {
		return
	}
	o := s.overrides[id]
	if text == c.text && o.Style == nil {
		delete(s.overrides, id)
		return
	}
	o.Text = &text
	s.overrides[id] = o
}

// SetStyle merges patch into the typography override of id.
func (s *Store) SetStyle(id string, patch document.TextStyle) {
	if _, ok := s.capture(id); !ok {
		return
	}
	if patch.Color != "" {
		patch.Color = geometry.NormalizeColor(patch.Color)
	}
	o := s.overrides[id]
	var style document.TextStyle
	if o.Style != nil {
		style = *o.Style
	}
	style = style.Merge(sanitize(patch))
	o.Style = &style
	s.overrides[id] = o
}

func sanitize(patch document.TextStyle) document.TextStyle {
	if !geometry.IsFinite(patch.FontSize) || patch.FontSize < 0 {
		patch.FontSize = 0
	}
	if !geometry.IsFinite(patch.LineHeight) || patch.LineHeight < 0 {
		patch.LineHeight = 0
	}
	patch.LetterSpacing = geometry.FiniteOr(patch.LetterSpacing, 0)
	return patch
}

// Commit closes the open session and keeps its override.
func (s *Store) Commit() (string, bool) {
	if s.editing == nil {
		return "", false
	}
	id := s.editing.id
	s.editing = nil
	return id, true
}

// Cancel closes the open session and restores the override it started with.
func (s *Store) Cancel() {
	if s.editing == nil {
		return
	}
	if s.editing.had {
		s.overrides[s.editing.id] = s.editing.prior
	} else {
		delete(s.overrides, s.editing.id)
	}
	s.editing = nil
}

// Restore drops the override of id so the captured text shows again.
func (s *Store) Restore(id string) {
	delete(s.overrides, id)
}

// Drop forgets the overrides of ids and closes a session on any of them.
func (s *Store) Drop(ids ...string) {
	for _, id := range ids {
		delete(s.overrides, id)
		if s.editing != nil && s.editing.id == id {
			s.editing = nil
		}
	}
}

func (s *Store) Get(id string) (document.TextOverride, bool) {
	o, ok := s.overrides[id]
	return o.Clone(), ok
}

func (s *Store) Snapshot() map[string]document.TextOverride {
	out := make(map[string]document.TextOverride, len(s.overrides))
	for id, o := range s.overrides {
		out[id] = o.Clone()
	}
	return out
}

// Load replaces every override. Empty overrides are discarded.
func (s *Store) Load(overrides map[string]document.TextOverride) {
	s.overrides = make(map[string]document.TextOverride, len(overrides))
	for id, o := range overrides {
		if !o.IsEmpty() {
			s.overrides[id] = o.Clone()
		}
	}
	if s.editing != nil {
		if _, ok := s.base[s.editing.id]; !ok {
			s.editing = nil
		}
	}
}

// BaseText returns the captured text of id.
func (s *Store) BaseText(id string) string {
	c, _ := s.capture(id)
	return c.text
}

// TextFor returns the text currently shown for id.
func (s *Store) TextFor(id string) string {
	if o, ok := s.overrides[id]; ok && o.Text != nil {
		return *o.Text
	}
	return s.BaseText(id)
}

// StyleFor returns captured typography with any override merged on top.
func (s *Store) StyleFor(id string) document.TextStyle {
	c, ok := s.capture(id)
	if !ok {
		return document.TextStyle{FontSize: DefaultFontSize, LineHeight: DefaultLineHeight}
	}
	if o, ok := s.overrides[id]; ok && o.Style != nil {
		return c.style.Merge(*o.Style)
	}
	return c.style
}

// Apply writes the shown text and typography of every captured element to
// the surface. Elements without an override get their captured state back.
func (s *Store) Apply() {
	for id, c := range s.base {
		o, ok := s.overrides[id]
		s.surface.SetText(id, s.TextFor(id))
		if !ok || o.Style == nil {
			for _, prop := range styleProps {
				s.surface.SetStyle(id, prop, c.raw[prop])
			}
			continue
		}
		s.writeStyle(id, c, *o.Style)
	}
}

func (s *Store) writeStyle(id string, c captured, patch document.TextStyle) {
	values := maps.Clone(c.raw)
	if patch.FontSize > 0 {
		values[stage.PropFontSize] = stage.FormatPixels(patch.FontSize)
	}
	if patch.LineHeight > 0 {
		values[stage.PropLineHeight] = formatNumber(patch.LineHeight)
	}
	if patch.LetterSpacing != 0 {
		values[stage.PropLetterSpacing] = stage.FormatPixels(patch.LetterSpacing)
	}
	for prop, v := range map[string]string{
		stage.PropFontWeight:    patch.FontWeight,
		stage.PropFontFamily:    patch.FontFamily,
		stage.PropTextAlign:     patch.TextAlign,
		stage.PropTextTransform: patch.TextTransform,
		stage.PropColor:         patch.Color,
	} {
		if v != "" {
			values[prop] = v
		}
	}
	for _, prop := range styleProps {
		s.surface.SetStyle(id, prop, values[prop])
	}
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(stage.FormatPixels(v), "px")
}
