package stage

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

// Node seeds a Memory surface. Box is the laid-out rectangle in stage content
// pixels (zoom 1, no pan); ParentID empty or document.RootID means top-level.
type Node struct {
	ID       string
	Tag      string
	Text     string
	ParentID string
	Box      geometry.Rect
	Styles   map[string]string
}

type memNode struct {
	info     NodeInfo
	box      geometry.Rect
	children []string
	styles   map[string]string
	classes  map[string]bool
}

// Memory is a headless Surface. It resolves rendered rectangles the way a
// browser applies CSS transforms: each element transforms around its own
// center and inherits the transforms of its ancestors.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
	roots []string
	zoom  float64
	pan   geometry.Point
}

// NewMemory creates an empty surface at zoom 1.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]*memNode),
		zoom:  1,
	}
}

// Add appends a node under its parent. Parents must be added before children.
func (m *Memory) Add(n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" || n.ID == document.RootID {
		return fmt.Errorf("invalid node id %q", n.ID)
	}
	if _, ok := m.nodes[n.ID]; ok {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	parentID := n.ParentID
	if parentID == "" {
		parentID = document.RootID
	}

	node := &memNode{
		info: NodeInfo{
			ID:       n.ID,
			Tag:      strings.ToLower(n.Tag),
			Text:     n.Text,
			ParentID: parentID,
			Leaf:     true,
		},
		box:     n.Box,
		styles:  make(map[string]string, len(n.Styles)),
		classes: make(map[string]bool),
	}
	for k, v := range n.Styles {
		node.styles[k] = v
	}

	if parentID == document.RootID {
		node.info.Order = len(m.roots)
		m.roots = append(m.roots, n.ID)
	} else {
		parent, ok := m.nodes[parentID]
		if !ok {
			return fmt.Errorf("parent %q not found for %q", parentID, n.ID)
		}
		node.info.Order = len(parent.children)
		parent.children = append(parent.children, n.ID)
		parent.info.Leaf = false
	}
	m.nodes[n.ID] = node
	return nil
}

func (m *Memory) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, id := range m.roots {
		out = append(out, id)
		out = m.appendDescendants(out, id)
	}
	return out
}

func (m *Memory) Node(id string) (NodeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return NodeInfo{}, false
	}
	return n.info, true
}

func (m *Memory) Rect(id string) (geometry.Rect, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return geometry.Rect{}, false
	}
	world := m.worldMatrix(id)
	view := geometry.Translate(m.pan.X, m.pan.Y).Multiply(geometry.Scale(m.zoom, m.zoom))
	return view.Multiply(world).TransformRect(m.layoutBox(n)), true
}

func (m *Memory) Style(id, prop string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return "", false
	}
	v, ok := n.styles[prop]
	return v, ok
}

// SetStyle sets prop; an empty value removes it.
func (m *Memory) SetStyle(id, prop, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	if value == "" {
		delete(n.styles, prop)
	} else {
		n.styles[prop] = value
	}
	return true
}

func (m *Memory) SetText(id, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	n.info.Text = text
	return true
}

func (m *Memory) SetClass(id, class string, on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	if on {
		n.classes[class] = true
	} else {
		delete(n.classes, class)
	}
	return true
}

// HasClass reports whether class is currently set on id.
func (m *Memory) HasClass(id, class string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	return ok && n.classes[class]
}

func (m *Memory) Descendants(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.nodes[id]; !ok {
		return nil
	}
	return m.appendDescendants(nil, id)
}

func (m *Memory) Reparent(id, parentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	if parentID == "" {
		parentID = document.RootID
	}
	if parentID == n.info.ParentID {
		return true
	}
	if parentID != document.RootID {
		if _, ok := m.nodes[parentID]; !ok || parentID == id {
			return false
		}
		if slices.Contains(m.appendDescendants(nil, id), parentID) {
			return false
		}
	}

	m.detachLocked(id, n.info.ParentID)
	if parentID == document.RootID {
		m.roots = append(m.roots, id)
	} else {
		parent := m.nodes[parentID]
		parent.children = append(parent.children, id)
		parent.info.Leaf = false
	}
	n.info.ParentID = parentID
	m.reindexLocked(parentID)
	return true
}

func (m *Memory) SetViewport(zoom float64, pan geometry.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.zoom = geometry.PositiveOr(zoom, 1)
	m.pan = pan
}

func (m *Memory) detachLocked(id, parentID string) {
	if parentID == document.RootID {
		m.roots = slices.DeleteFunc(m.roots, func(s string) bool { return s == id })
		m.reindexLocked(document.RootID)
		return
	}
	parent, ok := m.nodes[parentID]
	if !ok {
		return
	}
	parent.children = slices.DeleteFunc(parent.children, func(s string) bool { return s == id })
	parent.info.Leaf = len(parent.children) == 0
	m.reindexLocked(parentID)
}

func (m *Memory) reindexLocked(parentID string) {
	ids := m.roots
	if parentID != document.RootID {
		ids = m.nodes[parentID].children
	}
	for i, id := range ids {
		m.nodes[id].info.Order = i
	}
}

func (m *Memory) appendDescendants(out []string, id string) []string {
	for _, child := range m.nodes[id].children {
		out = append(out, child)
		out = m.appendDescendants(out, child)
	}
	return out
}

// layoutBox applies absolute positioning and explicit size overrides to the seed box.
func (m *Memory) layoutBox(n *memNode) geometry.Rect {
	box := n.box
	if n.styles[PropPosition] == "absolute" {
		if v, ok := ParsePixels(n.styles[PropLeft]); ok {
			box.X = v
		}
		if v, ok := ParsePixels(n.styles[PropTop]); ok {
			box.Y = v
		}
	}
	if v, ok := ParsePixels(n.styles[PropWidth]); ok {
		box.Width = v
	}
	if v, ok := ParsePixels(n.styles[PropHeight]); ok {
		box.Height = v
	}
	return box
}

func (m *Memory) worldMatrix(id string) geometry.Matrix2D {
	var chain []*memNode
	for cur := id; cur != document.RootID; {
		n, ok := m.nodes[cur]
		if !ok {
			break
		}
		chain = append(chain, n)
		cur = n.info.ParentID
	}

	world := geometry.Identity()
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		t, ok := ParseTransform(n.styles[PropTransform])
		if !ok {
			continue
		}
		t = t.Normalized()
		local := geometry.FromTransform(t.X, t.Y, t.ScaleX, t.ScaleY, t.Rotate, m.layoutBox(n).Center())
		world = world.Multiply(local)
	}
	return world
}
