package editor

import (
	"strings"
	"sync"
)

// KeyPattern matches a key event. Ctrl matches either Control or Meta so a
// single binding covers Ctrl on one platform and Cmd on another.
type KeyPattern struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	// AnyShift ignores the shift state, for keys such as "+" that need it.
	AnyShift bool `json:"anyShift,omitempty"`
}

func (p KeyPattern) Matches(ev KeyEvent) bool {
	if !strings.EqualFold(p.Key, ev.Key) {
		return false
	}
	if p.Ctrl != (ev.Ctrl || ev.Meta) || p.Alt != ev.Alt {
		return false
	}
	return p.AnyShift || p.Shift == ev.Shift
}

type keyBinding struct {
	pattern KeyPattern
	cmd     Command
	active  bool
}

// Keymap maps key patterns to commands. Later bindings win over earlier ones
// for the same pattern.
type Keymap struct {
	mu       sync.Mutex
	bindings []*keyBinding
}

func NewKeymap() *Keymap {
	return &Keymap{}
}

func (k *Keymap) Bind(p KeyPattern, cmd Command) Unbind {
	b := &keyBinding{pattern: p, cmd: cmd, active: true}
	k.mu.Lock()
	k.bindings = append(k.bindings, b)
	k.mu.Unlock()

	return func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		b.active = false
		for i, cur := range k.bindings {
			if cur == b {
				k.bindings = append(k.bindings[:i:i], k.bindings[i+1:]...)
				break
			}
		}
	}
}

// Lookup returns the command bound to ev.
func (k *Keymap) Lookup(ev KeyEvent) (Command, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := len(k.bindings) - 1; i >= 0; i-- {
		if b := k.bindings[i]; b.active && b.pattern.Matches(ev) {
			return b.cmd, true
		}
	}
	return Command{}, false
}

// Len returns the number of active bindings.
func (k *Keymap) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.bindings)
}

func (e *Editor) bindDefaults() {
	nudge := func(key string, dx, dy float64) {
		e.keymap.Bind(KeyPattern{Key: key}, Command{Type: CmdNudge, DX: dx, DY: dy})
		e.keymap.Bind(KeyPattern{Key: key, Shift: true}, Command{Type: CmdNudge, DX: dx * 10, DY: dy * 10})
	}
	nudge("ArrowLeft", -1, 0)
	nudge("ArrowRight", 1, 0)
	nudge("ArrowUp", 0, -1)
	nudge("ArrowDown", 0, 1)

	e.keymap.Bind(KeyPattern{Key: "Backspace"}, Command{Type: CmdLayerDelete})
	e.keymap.Bind(KeyPattern{Key: "Delete"}, Command{Type: CmdLayerDelete})
	e.keymap.Bind(KeyPattern{Key: "Escape"}, Command{Type: CmdEscape})

	e.keymap.Bind(KeyPattern{Key: "z", Ctrl: true}, Command{Type: CmdUndo})
	e.keymap.Bind(KeyPattern{Key: "z", Ctrl: true, Shift: true}, Command{Type: CmdRedo})

	e.keymap.Bind(KeyPattern{Key: "=", Ctrl: true, AnyShift: true}, Command{Type: CmdZoomIn})
	e.keymap.Bind(KeyPattern{Key: "+", Ctrl: true, AnyShift: true}, Command{Type: CmdZoomIn})
	e.keymap.Bind(KeyPattern{Key: "-", Ctrl: true, AnyShift: true}, Command{Type: CmdZoomOut})
}
