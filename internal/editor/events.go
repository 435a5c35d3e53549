package editor

type EventKind string

const (
	EventSelection EventKind = "selection"
	EventState     EventKind = "state"
	EventViewport  EventKind = "viewport"
	EventTool      EventKind = "tool"
	EventHistory   EventKind = "history"
)

// Event tells subscribers which part of the editor changed. Label names the
// edit for state events.
type Event struct {
	Kind  EventKind `json:"kind"`
	Label string    `json:"label,omitempty"`
}

// Unbind removes a subscription or key binding. Calling it more than once is
// harmless.
type Unbind func()

type subscriber struct {
	fn     func(Event)
	active bool
}

// Subscribe registers fn for change events. Callbacks run after the editor
// lock is released, so they may call back into the editor.
func (e *Editor) Subscribe(fn func(Event)) Unbind {
	s := &subscriber{fn: fn, active: true}
	e.subMu.Lock()
	e.subs = append(e.subs, s)
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		s.active = false
		for i, cur := range e.subs {
			if cur == s {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				break
			}
		}
	}
}

// queue records an event for delivery once the lock is released. Repeats of
// the last queued event are folded.
func (e *Editor) queue(ev Event) {
	if n := len(e.pending); n > 0 && e.pending[n-1] == ev {
		return
	}
	e.pending = append(e.pending, ev)
}

func (e *Editor) notify(events []Event) {
	if len(events) == 0 {
		return
	}
	e.subMu.Lock()
	subs := append([]*subscriber(nil), e.subs...)
	e.subMu.Unlock()

	for _, ev := range events {
		for _, s := range subs {
			e.subMu.Lock()
			active := s.active
			e.subMu.Unlock()
			if active {
				s.fn(ev)
			}
		}
	}
}
