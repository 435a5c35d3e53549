// Package history records debounced undo/redo snapshots of the editable state.
//
// Mutations call Track, which (re)arms a debounce timer. When the timer fires
// the current state is captured and committed only when its signature differs
// from the present entry, so a burst of changes such as a pointer drag yields
// a single entry.
package history

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/typeid"
)

const (
	DefaultDebounce = 320 * time.Millisecond
	DefaultLimit    = 60
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Timer is the handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Capture returns the current aggregate state.
type Capture func() document.Snapshot

type Entry struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	At        time.Time         `json:"at"`
	Signature string            `json:"-"`
	Snapshot  document.Snapshot `json:"-"`
}

type Options struct {
	Debounce  time.Duration
	Limit     int
	Scheduler Scheduler
	// Dispatch runs timer callbacks. The owner uses it to take its own lock
	// before the engine captures state. Defaults to calling f directly.
	Dispatch func(f func())
	Now      func() time.Time
	NewID    func() string
	Logger   *zap.Logger
}

// Engine is not safe for concurrent use. Timer callbacks reach it only
// through Options.Dispatch.
type Engine struct {
	capture Capture
	opts    Options
	log     *zap.Logger

	past    []Entry
	present *Entry
	future  []Entry

	timer      Timer
	label      string
	generation uint64
	applying   bool
}

func New(capture Capture, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock{}
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = typeid.NewHistoryID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{capture: capture, opts: opts, log: opts.Logger.Named("history")}
}

// Signature serializes snap with sorted map keys. Equal states produce equal
// signatures.
func Signature(snap document.Snapshot) string {
	b, err := json.Marshal(snap.Clone())
	if err != nil {
		return ""
	}
	return string(b)
}

func (e *Engine) entry(label string, snap document.Snapshot) Entry {
	snap = snap.Clone()
	return Entry{
		ID:        e.opts.NewID(),
		Label:     label,
		At:        e.opts.Now(),
		Signature: Signature(snap),
		Snapshot:  snap,
	}
}

// Track notes a mutation and (re)arms the debounce timer. Calls made while a
// snapshot is being applied are ignored.
func (e *Engine) Track(label string) {
	if e.applying {
		return
	}
	e.stopTimer()
	e.generation++
	e.label = label
	gen := e.generation
	e.timer = e.opts.Scheduler.AfterFunc(e.opts.Debounce, func() {
		e.opts.Dispatch(func() { e.fire(gen) })
	})
}

func (e *Engine) fire(gen uint64) {
	// a timer stopped after it already fired may still land here
	if gen != e.generation || e.timer == nil {
		return
	}
	e.timer = nil
	e.commit()
}

// Pending reports whether a commit is scheduled.
func (e *Engine) Pending() bool {
	return e.timer != nil
}

// Flush commits a scheduled change immediately. It reports whether an entry
// was added.
func (e *Engine) Flush() bool {
	if e.timer == nil {
		return false
	}
	e.stopTimer()
	return e.commit()
}

func (e *Engine) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) commit() bool {
	label := e.label
	if label == "" {
		label = "Edit"
	}
	next := e.entry(label, e.capture())
	if e.present != nil && e.present.Signature == next.Signature {
		e.log.Debug("duplicate state skipped", zap.String("label", label))
		return false
	}
	if e.present != nil {
		e.past = append(e.past, *e.present)
		if over := len(e.past) - e.opts.Limit; over > 0 {
			e.past = append(e.past[:0:0], e.past[over:]...)
		}
	}
	e.present = &next
	e.future = nil
	e.log.Debug("committed", zap.String("label", label), zap.Int("past", len(e.past)))
	return true
}

// Clear drops every entry, cancels a pending commit and records initial as
// the present state.
func (e *Engine) Clear(initial document.Snapshot) {
	e.stopTimer()
	e.generation++
	e.past, e.future = nil, nil
	first := e.entry("Initial", initial)
	e.present = &first
}

// Apply runs fn with tracking suspended.
func (e *Engine) Apply(fn func()) {
	e.applying = true
	defer func() { e.applying = false }()
	fn()
}

// Undo flushes a pending change, steps back one entry and passes its snapshot
// to apply. It reports false when there is nothing to undo.
func (e *Engine) Undo(apply func(document.Snapshot)) bool {
	e.Flush()
	if len(e.past) == 0 || e.present == nil {
		return false
	}
	prev := e.past[len(e.past)-1]
	e.past = e.past[:len(e.past)-1]
	e.future = append(e.future, *e.present)
	e.present = &prev
	e.Apply(func() { apply(prev.Snapshot.Clone()) })
	e.log.Debug("undo", zap.String("label", prev.Label))
	return true
}

// Redo re-applies the most recently undone entry.
func (e *Engine) Redo(apply func(document.Snapshot)) bool {
	e.Flush()
	if len(e.future) == 0 || e.present == nil {
		return false
	}
	next := e.future[len(e.future)-1]
	e.future = e.future[:len(e.future)-1]
	e.past = append(e.past, *e.present)
	e.present = &next
	e.Apply(func() { apply(next.Snapshot.Clone()) })
	e.log.Debug("redo", zap.String("label", next.Label))
	return true
}

func (e *Engine) CanUndo() bool { return len(e.past) > 0 }
func (e *Engine) CanRedo() bool { return len(e.future) > 0 }

// Present returns the current entry.
func (e *Engine) Present() (Entry, bool) {
	if e.present == nil {
		return Entry{}, false
	}
	p := *e.present
	p.Snapshot = p.Snapshot.Clone()
	return p, true
}

type Position string

const (
	Past    Position = "past"
	Current Position = "present"
	Future  Position = "future"
)

// Item is one row of the history panel.
type Item struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	At       time.Time `json:"at"`
	Position Position  `json:"position"`
}

// Entries lists every entry oldest first.
func (e *Engine) Entries() []Item {
	items := make([]Item, 0, len(e.past)+len(e.future)+1)
	for _, p := range e.past {
		items = append(items, Item{ID: p.ID, Label: p.Label, At: p.At, Position: Past})
	}
	if e.present != nil {
		items = append(items, Item{ID: e.present.ID, Label: e.present.Label, At: e.present.At, Position: Current})
	}
	for i := len(e.future) - 1; i >= 0; i-- {
		f := e.future[i]
		items = append(items, Item{ID: f.ID, Label: f.Label, At: f.At, Position: Future})
	}
	return items
}

// Close cancels a pending commit without recording it.
func (e *Engine) Close() {
	e.stopTimer()
	e.generation++
}
