//go:build js && wasm

package main

import (
	"sync"
	"syscall/js"

	jsoniter "github.com/json-iterator/go"

	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/htmldom"
	"github.com/gemstudio/gem/editor-go/internal/patch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	mu        sync.Mutex
	ed        *editor.Editor
	listeners []js.Value
)

func main() {
	api := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	api.Set("loadMockup", js.FuncOf(loadMockup))
	api.Set("dispatch", js.FuncOf(dispatch))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))
	api.Set("onChange", js.FuncOf(onChange))

	// --- Queries (frontend ← editor) ---
	api.Set("getPatch", js.FuncOf(getPatch))
	api.Set("getSelection", js.FuncOf(getSelection))
	api.Set("getHistory", js.FuncOf(getHistory))

	js.Global().Set("gemEditor", api)
	js.Global().Set("gemWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func current() *editor.Editor {
	mu.Lock()
	defer mu.Unlock()
	return ed
}

func errorValue(msg string) js.Value {
	return js.ValueOf(map[string]any{"error": msg})
}

func loadMockup(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorValue("missing mock-up HTML")
	}
	surface, err := htmldom.LoadString(args[0].String())
	if err != nil {
		return errorValue(err.Error())
	}

	next := editor.New(surface, editor.Options{})
	next.Subscribe(func(ev editor.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		mu.Lock()
		fns := append([]js.Value(nil), listeners...)
		mu.Unlock()
		for _, fn := range fns {
			fn.Invoke(string(data))
		}
	})

	mu.Lock()
	prev := ed
	ed = next
	mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return js.ValueOf(map[string]any{"ok": true, "elements": len(next.Elements())})
}

func dispatch(this js.Value, args []js.Value) any {
	e := current()
	if e == nil {
		return errorValue("no mock-up loaded")
	}
	if len(args) < 1 {
		return errorValue("missing command JSON")
	}
	var cmd editor.Command
	if err := json.UnmarshalFromString(args[0].String(), &cmd); err != nil {
		return errorValue("invalid command: " + err.Error())
	}
	res, err := e.Dispatch(cmd)
	if err != nil {
		return errorValue(err.Error())
	}
	out := map[string]any{"ok": true, "changed": res.Changed}
	if res.CreatedID != "" {
		out["createdId"] = res.CreatedID
	}
	return js.ValueOf(out)
}

func undo(this js.Value, args []js.Value) any {
	if e := current(); e != nil {
		return js.ValueOf(e.Undo())
	}
	return js.ValueOf(false)
}

func redo(this js.Value, args []js.Value) any {
	if e := current(); e != nil {
		return js.ValueOf(e.Redo())
	}
	return js.ValueOf(false)
}

// onChange registers a callback receiving each change event as JSON.
func onChange(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return errorValue("missing callback")
	}
	mu.Lock()
	listeners = append(listeners, args[0])
	mu.Unlock()
	return js.ValueOf(true)
}

func getPatch(this js.Value, args []js.Value) any {
	e := current()
	if e == nil {
		return js.Null()
	}
	data, err := patch.Encode(e.Patch())
	if err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(string(data))
}

func getSelection(this js.Value, args []js.Value) any {
	e := current()
	if e == nil {
		return js.Null()
	}
	sel := e.Selection()
	ids := make([]any, 0, sel.Len())
	for _, id := range sel.IDs() {
		ids = append(ids, id)
	}
	return js.ValueOf(map[string]any{"ids": ids, "primary": sel.PrimaryID()})
}

func getHistory(this js.Value, args []js.Value) any {
	e := current()
	if e == nil {
		return js.Null()
	}
	data, err := json.Marshal(e.History())
	if err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(string(data))
}
