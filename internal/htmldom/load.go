// Package htmldom loads a rendered HTML mock-up into a headless stage surface.
//
// Editable elements carry a data-gem-id attribute. Their laid-out rectangle is
// read from data-x/data-y/data-w/data-h, falling back to the inline style
// left/top/width/height. Nesting follows the nearest tagged ancestor.
package htmldom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
	"github.com/gemstudio/gem/editor-go/internal/stage"
)

var ErrNoElements = errors.New("no data-gem-id elements in mock-up")

var taggedXPath = fmt.Sprintf("//*[@%s]", stage.IDAttribute)

// Load parses r and returns a surface holding every tagged element.
func Load(r io.Reader) (*stage.Memory, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse mock-up: %w", err)
	}
	return FromNode(doc)
}

// LoadString is Load over an in-memory document.
func LoadString(src string) (*stage.Memory, error) {
	return Load(strings.NewReader(src))
}

// FromNode builds a surface from an already parsed document.
func FromNode(doc *html.Node) (*stage.Memory, error) {
	nodes, err := htmlquery.QueryAll(doc, taggedXPath)
	if err != nil {
		return nil, fmt.Errorf("query tagged elements: %w", err)
	}
	if len(nodes) == 0 {
		return nil, ErrNoElements
	}

	surface := stage.NewMemory()
	for _, n := range nodes {
		id := strings.TrimSpace(htmlquery.SelectAttr(n, stage.IDAttribute))
		if id == "" {
			continue
		}
		styles := stage.ParseInlineStyle(htmlquery.SelectAttr(n, "style"))
		node := stage.Node{
			ID:       id,
			Tag:      n.Data,
			Text:     collapseSpace(htmlquery.InnerText(n)),
			ParentID: taggedParent(n),
			Box:      boxOf(n, styles),
			Styles:   typography(styles),
		}
		if t, ok := stage.ParseTransform(styles[stage.PropTransform]); ok {
			node.Styles[stage.PropTransform] = stage.FormatTransform(t)
		}
		if err := surface.Add(node); err != nil {
			return nil, fmt.Errorf("add element %q: %w", id, err)
		}
	}
	return surface, nil
}

func taggedParent(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if id := strings.TrimSpace(htmlquery.SelectAttr(p, stage.IDAttribute)); id != "" {
			return id
		}
	}
	return document.RootID
}

func boxOf(n *html.Node, styles map[string]string) geometry.Rect {
	read := func(attr, prop string) float64 {
		if v, ok := stage.ParsePixels(htmlquery.SelectAttr(n, attr)); ok {
			return v
		}
		if v, ok := stage.ParsePixels(styles[prop]); ok {
			return v
		}
		return 0
	}
	return geometry.Rect{
		X:      read("data-x", stage.PropLeft),
		Y:      read("data-y", stage.PropTop),
		Width:  read("data-w", stage.PropWidth),
		Height: read("data-h", stage.PropHeight),
	}
}

var typographyProps = []string{
	stage.PropFontSize, stage.PropLineHeight, stage.PropLetterSpacing, stage.PropFontWeight,
	stage.PropFontFamily, stage.PropTextAlign, stage.PropTextTransform, stage.PropColor,
}

// typography keeps only the inline properties the text overlay reads back.
// Geometry is carried by the box, so left/top/width/height are not copied.
func typography(styles map[string]string) map[string]string {
	out := make(map[string]string)
	for _, p := range typographyProps {
		if v, ok := styles[p]; ok {
			out[p] = v
		}
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
