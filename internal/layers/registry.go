// Package layers tracks per-element visibility, lock and deletion state and
// groups elements into folders.
package layers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/selection"
	"github.com/gemstudio/gem/editor-go/internal/typeid"
)

// SelectionHolder owns the live selection the registry reads and prunes.
type SelectionHolder interface {
	Selection() selection.Selection
	SetSelection(selection.Selection)
}

// Dropper forgets per-element overrides of deleted ids.
type Dropper interface {
	Drop(ids ...string)
}

type Option func(*Registry)

// WithFolderIDs replaces the folder id generator.
func WithFolderIDs(next func() string) Option {
	return func(r *Registry) { r.newFolderID = next }
}

// WithDroppers registers stores that drop overrides when layers are deleted.
func WithDroppers(droppers ...Dropper) Option {
	return func(r *Registry) { r.droppers = append(r.droppers, droppers...) }
}

// Registry is not safe for concurrent use; the editor serializes access.
type Registry struct {
	order       []string
	elements    map[string]document.Element
	meta        map[string]document.LayerMeta
	folders     map[string]document.Folder
	folderOrder []string
	deleted     map[string]bool
	highlighted []string

	sel         SelectionHolder
	droppers    []Dropper
	newFolderID func() string
	log         *zap.Logger
}

func NewRegistry(elements []document.Element, sel SelectionHolder, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		elements:    make(map[string]document.Element, len(elements)),
		meta:        make(map[string]document.LayerMeta),
		folders:     make(map[string]document.Folder),
		deleted:     make(map[string]bool),
		sel:         sel,
		newFolderID: typeid.NewFolderID,
		log:         logger.Named("layers"),
	}
	for _, el := range elements {
		if _, dup := r.elements[el.ID]; dup {
			continue
		}
		r.order = append(r.order, el.ID)
		r.elements[el.ID] = el
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Live reports whether id is a known element that has not been deleted.
func (r *Registry) Live(id string) bool {
	_, ok := r.elements[id]
	return ok && !r.deleted[id]
}

func (r *Registry) IsHidden(id string) bool  { return r.meta[id].Hidden }
func (r *Registry) IsLocked(id string) bool  { return r.meta[id].Locked }
func (r *Registry) IsDeleted(id string) bool { return r.deleted[id] }

// Selectable reports whether id may join the selection.
func (r *Registry) Selectable(id string) bool {
	return r.Live(id) && !r.IsHidden(id)
}

// Movable reports whether id may be transformed.
func (r *Registry) Movable(id string) bool {
	return r.Selectable(id) && !r.IsLocked(id)
}

// Name returns the display name of id.
func (r *Registry) Name(id string) string {
	if name := r.meta[id].Name; name != "" {
		return name
	}
	if el, ok := r.elements[id]; ok && el.Tag != "" {
		return fmt.Sprintf("%s %s", el.Tag, id)
	}
	return id
}

func (r *Registry) updateMeta(id string, fn func(*document.LayerMeta)) {
	m := r.meta[id]
	fn(&m)
	if m == (document.LayerMeta{}) {
		delete(r.meta, id)
		return
	}
	r.meta[id] = m
}

func (r *Registry) hide(ids []string, hidden bool) {
	for _, id := range ids {
		r.updateMeta(id, func(m *document.LayerMeta) { m.Hidden = hidden })
	}
	if !hidden {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	r.prune(drop)
}

// prune removes ids from the live selection and the highlighted set.
func (r *Registry) prune(drop map[string]bool) {
	if r.sel != nil {
		cur := r.sel.Selection()
		next := cur.Without(func(id string) bool { return drop[id] })
		if !next.Equal(cur) {
			r.sel.SetSelection(next)
		}
	}
	r.highlighted = slices.DeleteFunc(r.highlighted, func(id string) bool { return drop[id] })
}

func (r *Registry) ToggleHidden(id string) {
	if !r.Live(id) {
		return
	}
	r.hide([]string{id}, !r.IsHidden(id))
}

func (r *Registry) ToggleLocked(id string) {
	if !r.Live(id) {
		return
	}
	r.updateMeta(id, func(m *document.LayerMeta) { m.Locked = !m.Locked })
}

// RenameLayer sets the display name of id; an empty name restores the default.
func (r *Registry) RenameLayer(id, name string) {
	if !r.Live(id) {
		return
	}
	r.updateMeta(id, func(m *document.LayerMeta) { m.Name = strings.TrimSpace(name) })
}

// liveSelection returns the selected ids that still exist, in order.
func (r *Registry) liveSelection() []string {
	if r.sel == nil {
		return nil
	}
	return slices.DeleteFunc(r.sel.Selection().IDs(), func(id string) bool { return !r.Live(id) })
}

// claim removes ids from every folder.
func (r *Registry) claim(ids []string) {
	if len(ids) == 0 {
		return
	}
	for fid, f := range r.folders {
		kept := slices.DeleteFunc(slices.Clone(f.LayerIDs), func(id string) bool { return slices.Contains(ids, id) })
		if len(kept) != len(f.LayerIDs) {
			f.LayerIDs = kept
			r.folders[fid] = f
		}
	}
}

// CreateFolder groups the current selection into a new folder and returns its id.
func (r *Registry) CreateFolder(name string) string {
	ids := r.liveSelection()
	r.claim(ids)

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Folder %d", len(r.folders)+1)
	}
	f := document.Folder{ID: r.newFolderID(), Name: name, LayerIDs: ids}
	if f.LayerIDs == nil {
		f.LayerIDs = []string{}
	}
	r.folders[f.ID] = f
	r.folderOrder = append(r.folderOrder, f.ID)
	r.log.Debug("folder created", zap.String("id", f.ID), zap.Strings("layers", ids))
	return f.ID
}

func (r *Registry) RenameFolder(id, name string) {
	f, ok := r.folders[id]
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return
	}
	f.Name = name
	r.folders[id] = f
}

// RemoveFolder ungroups the members of id. The elements themselves stay.
func (r *Registry) RemoveFolder(id string) {
	if _, ok := r.folders[id]; !ok {
		return
	}
	delete(r.folders, id)
	r.folderOrder = slices.DeleteFunc(r.folderOrder, func(fid string) bool { return fid == id })
}

func (r *Registry) ToggleFolderCollapsed(id string) {
	f, ok := r.folders[id]
	if !ok {
		return
	}
	f.Collapsed = !f.Collapsed
	r.folders[id] = f
}

// AddSelectionToFolder moves the current selection into folder id.
func (r *Registry) AddSelectionToFolder(id string) {
	f, ok := r.folders[id]
	if !ok {
		return
	}
	var ids []string
	for _, sid := range r.liveSelection() {
		if !slices.Contains(f.LayerIDs, sid) {
			ids = append(ids, sid)
		}
	}
	if len(ids) == 0 {
		return
	}
	r.claim(ids)
	f = r.folders[id]
	f.LayerIDs = append(f.LayerIDs, ids...)
	r.folders[id] = f
}

// RemoveFromFolder ungroups ids without deleting them.
func (r *Registry) RemoveFromFolder(ids ...string) {
	r.claim(ids)
}

// FolderOf returns the folder holding id.
func (r *Registry) FolderOf(id string) (string, bool) {
	for _, fid := range r.folderOrder {
		if slices.Contains(r.folders[fid].LayerIDs, id) {
			return fid, true
		}
	}
	return "", false
}

func (r *Registry) liveMembers(f document.Folder) []string {
	return slices.DeleteFunc(slices.Clone(f.LayerIDs), func(id string) bool { return !r.Live(id) })
}

// ToggleFolderHidden hides every member when any member is visible, and shows
// them all otherwise.
func (r *Registry) ToggleFolderHidden(id string) {
	f, ok := r.folders[id]
	if !ok {
		return
	}
	members := r.liveMembers(f)
	anyVisible := slices.ContainsFunc(members, func(m string) bool { return !r.IsHidden(m) })
	r.hide(members, anyVisible)
}

// ToggleFolderLocked locks every member when any member is unlocked, and
// unlocks them all otherwise.
func (r *Registry) ToggleFolderLocked(id string) {
	f, ok := r.folders[id]
	if !ok {
		return
	}
	members := r.liveMembers(f)
	anyUnlocked := slices.ContainsFunc(members, func(m string) bool { return !r.IsLocked(m) })
	for _, m := range members {
		r.updateMeta(m, func(meta *document.LayerMeta) { meta.Locked = anyUnlocked })
	}
}

// DeleteSelected tombstones the selected layers, strips them from folders and
// drops their metadata and overrides. It returns the deleted ids.
func (r *Registry) DeleteSelected() []string {
	ids := r.liveSelection()
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		r.deleted[id] = true
		delete(r.meta, id)
		drop[id] = true
	}
	r.claim(ids)
	for _, d := range r.droppers {
		d.Drop(ids...)
	}
	r.prune(drop)
	r.log.Debug("layers deleted", zap.Strings("ids", ids))
	return ids
}

// Restore brings deleted ids back.
func (r *Registry) Restore(ids ...string) {
	for _, id := range ids {
		delete(r.deleted, id)
	}
}

// SetHighlighted replaces the highlighted set with the visible live ids.
func (r *Registry) SetHighlighted(ids []string) {
	seen := make(map[string]bool, len(ids))
	r.highlighted = r.highlighted[:0:0]
	for _, id := range ids {
		if seen[id] || !r.Selectable(id) {
			continue
		}
		seen[id] = true
		r.highlighted = append(r.highlighted, id)
	}
}

func (r *Registry) Highlighted() []string {
	return slices.Clone(r.highlighted)
}

func (r *Registry) IsHighlighted(id string) bool {
	return slices.Contains(r.highlighted, id)
}

// LiveIDs lists non-deleted elements in base order.
func (r *Registry) LiveIDs() []string {
	return slices.DeleteFunc(slices.Clone(r.order), func(id string) bool { return r.deleted[id] })
}

// Entry is one row of the layer list.
type Entry struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Tag         string               `json:"tag"`
	Kind        document.ElementKind `json:"kind"`
	Hidden      bool                 `json:"hidden"`
	Locked      bool                 `json:"locked"`
	Selected    bool                 `json:"selected"`
	Highlighted bool                 `json:"highlighted"`
	FolderID    string               `json:"folderId,omitempty"`
}

// LayerEntries lists live layers by base order.
func (r *Registry) LayerEntries() []Entry {
	var sel selection.Selection
	if r.sel != nil {
		sel = r.sel.Selection()
	}
	entries := make([]Entry, 0, len(r.order))
	for _, id := range r.LiveIDs() {
		el := r.elements[id]
		folderID, _ := r.FolderOf(id)
		entries = append(entries, Entry{
			ID:          id,
			Name:        r.Name(id),
			Tag:         el.Tag,
			Kind:        el.Kind,
			Hidden:      r.IsHidden(id),
			Locked:      r.IsLocked(id),
			Selected:    sel.Contains(id),
			Highlighted: r.IsHighlighted(id),
			FolderID:    folderID,
		})
	}
	return entries
}

type FolderEntry struct {
	Folder  document.Folder `json:"folder"`
	Members []string        `json:"members"`
}

// View partitions live layers into folders and the ungrouped remainder.
type View struct {
	Folders   []FolderEntry `json:"folders"`
	Ungrouped []string      `json:"ungrouped"`
}

func (r *Registry) FolderView() View {
	grouped := make(map[string]bool)
	view := View{Folders: []FolderEntry{}, Ungrouped: []string{}}
	for _, fid := range r.folderOrder {
		f := r.folders[fid]
		members := r.liveMembers(f)
		for _, m := range members {
			grouped[m] = true
		}
		view.Folders = append(view.Folders, FolderEntry{Folder: f.Clone(), Members: members})
	}
	for _, id := range r.LiveIDs() {
		if !grouped[id] {
			view.Ungrouped = append(view.Ungrouped, id)
		}
	}
	return view
}

// Fill copies the registry state into snap.
func (r *Registry) Fill(snap *document.Snapshot) {
	snap.LayerMeta = maps.Clone(r.meta)
	snap.Folders = make(map[string]document.Folder, len(r.folders))
	for id, f := range r.folders {
		snap.Folders[id] = f.Clone()
	}
	snap.FolderOrder = slices.Clone(r.folderOrder)
	snap.DeletedIDs = slices.Sorted(maps.Keys(r.deleted))
	snap.HighlightedIDs = slices.Clone(r.highlighted)
}

// Load replaces the registry state with snap. Folder members listed more than
// once keep their first folder.
func (r *Registry) Load(snap document.Snapshot) {
	r.meta = maps.Clone(snap.LayerMeta)
	if r.meta == nil {
		r.meta = make(map[string]document.LayerMeta)
	}
	r.deleted = make(map[string]bool, len(snap.DeletedIDs))
	for _, id := range snap.DeletedIDs {
		r.deleted[id] = true
	}

	r.folders = make(map[string]document.Folder, len(snap.Folders))
	r.folderOrder = r.folderOrder[:0:0]
	claimed := make(map[string]bool)
	order := slices.Clone(snap.FolderOrder)
	for _, id := range slices.Sorted(maps.Keys(snap.Folders)) {
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	for _, id := range order {
		f, ok := snap.Folders[id]
		if !ok {
			continue
		}
		f = f.Clone()
		f.LayerIDs = slices.DeleteFunc(f.LayerIDs, func(m string) bool {
			if claimed[m] {
				return true
			}
			claimed[m] = true
			return false
		})
		r.folders[id] = f
		r.folderOrder = append(r.folderOrder, id)
	}
	r.highlighted = slices.Clone(snap.HighlightedIDs)
}
