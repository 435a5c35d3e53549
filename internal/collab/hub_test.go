package collab

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/history"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const mockup = `<!doctype html>
<html><body>
  <h1 data-gem-id="hero-title" style="left: 20px; top: 20px; width: 100px; height: 40px; font-size: 20px">Launch faster</h1>
  <section data-gem-id="cards" data-x="0" data-y="180" data-w="360" data-h="140"></section>
</body></html>`

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

// idleScheduler never fires so history stays at its initial entry.
type idleScheduler struct{}

func (idleScheduler) AfterFunc(time.Duration, func()) history.Timer { return idleTimer{} }

func newTestHub(t *testing.T, opts HubOptions) *Hub {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proj_demo.html"), []byte(mockup), 0o644))

	logger := zaptest.NewLogger(t)
	opts.Logger = logger
	h := NewHub(DirLoader(dir, editor.Options{Logger: logger, Scheduler: idleScheduler{}}), opts)
	t.Cleanup(h.stop)
	return h
}

func join(h *Hub, userID, clientID string) *Client {
	c := newClient(h, userID, userID+" name", "proj_demo", clientID)
	h.addClient(c)
	return c
}

func next(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func command(t *testing.T, id string, cmd editor.Command) *Message {
	t.Helper()
	payload, err := json.Marshal(CommandPayload{ID: id, Command: cmd})
	require.NoError(t, err)
	return &Message{Type: TypeEditorCommand, Payload: payload}
}

func TestJoinSendsWelcomeAndPresence(t *testing.T) {
	h := newTestHub(t, HubOptions{})

	a := join(h, "user_a", "c1")
	msg := next(t, a)
	require.Equal(t, TypeWelcome, msg.Type)
	var welcome WelcomePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &welcome))
	assert.Equal(t, "c1", welcome.ClientID)
	assert.EqualValues(t, 0, welcome.ServerSeq)
	assert.Len(t, welcome.History, 1)

	b := join(h, "user_b", "c2")
	drain(b)

	msg = next(t, a)
	require.Equal(t, TypePresenceJoin, msg.Type)
	var joined PresenceJoinPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &joined))
	assert.Equal(t, PresenceJoinPayload{UserID: "user_b", ClientID: "c2", DisplayName: "user_b name"}, joined)

	cursor, err := json.Marshal(PresencePayload{Cursor: &CursorPos{X: 4, Y: 8}})
	require.NoError(t, err)
	h.handleMessage(b, &Message{Type: TypePresenceUpdate, Payload: cursor})
	msg = next(t, a)
	require.Equal(t, TypePresenceUpdate, msg.Type)
	var presence PresencePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &presence))
	assert.Equal(t, "user_b name", presence.DisplayName)
	assert.Equal(t, &CursorPos{X: 4, Y: 8}, presence.Cursor)

	h.removeClient(b)
	msg = next(t, a)
	assert.Equal(t, TypePresenceLeave, msg.Type)
}

func TestCommandAckAndPatchBroadcast(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	a := join(h, "user_a", "c1")
	b := join(h, "user_b", "c2")
	drain(a)
	drain(b)

	h.handleMessage(a, command(t, "cmd_1", editor.Command{Type: editor.CmdSelect, IDs: []string{"hero-title"}}))
	drain(a)
	drain(b)

	h.handleMessage(a, command(t, "cmd_2", editor.Command{Type: editor.CmdMove, DX: 15, DY: -5}))

	msg := next(t, a)
	require.Equal(t, TypeOpAck, msg.Type)
	var ack CommandAckPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &ack))
	assert.Equal(t, "cmd_2", ack.CommandID)
	assert.True(t, ack.Result.Changed)
	assert.EqualValues(t, 2, ack.ServerSeq)

	for _, c := range []*Client{a, b} {
		msg := next(t, c)
		require.Equal(t, TypePatchUpdate, msg.Type)
		var update PatchUpdatePayload
		require.NoError(t, json.Unmarshal(msg.Payload, &update))
		assert.Equal(t, "user_a", update.UserID)
		assert.EqualValues(t, 2, update.ServerSeq)
		tr := update.Patch.Transforms["hero-title"]
		assert.Equal(t, 15.0, tr.X)
		assert.Equal(t, -5.0, tr.Y)
	}
}

func TestCommandNacks(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	a := join(h, "user_a", "c1")
	drain(a)

	h.handleMessage(a, command(t, "cmd_1", editor.Command{Type: "bogus"}))
	msg := next(t, a)
	require.Equal(t, TypeOpNack, msg.Type)
	var nack CommandNackPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &nack))
	assert.Equal(t, "cmd_1", nack.CommandID)
	assert.Contains(t, nack.Reason, "unknown command")

	h.handleMessage(a, &Message{Type: TypeEditorCommand, Payload: []byte(`"nope"`)})
	msg = next(t, a)
	require.Equal(t, TypeOpNack, msg.Type)
	require.NoError(t, json.Unmarshal(msg.Payload, &nack))
	assert.Equal(t, "invalid payload", nack.Reason)

	h.handleMessage(a, &Message{Type: "doc.sync", Payload: []byte(`{}`)})
	assert.Equal(t, TypeError, next(t, a).Type)
}

func TestRateLimitedClient(t *testing.T) {
	h := newTestHub(t, HubOptions{RateLimit: 1e-6, RateBurst: 1})
	a := join(h, "user_a", "c1")
	drain(a)

	h.handleMessage(a, command(t, "cmd_1", editor.Command{Type: editor.CmdZoomIn}))
	assert.Equal(t, TypeOpAck, next(t, a).Type)
	drain(a)

	h.handleMessage(a, command(t, "cmd_2", editor.Command{Type: editor.CmdZoomIn}))
	msg := next(t, a)
	require.Equal(t, TypeOpNack, msg.Type)
	var nack CommandNackPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &nack))
	assert.Equal(t, "rate limited", nack.Reason)
}

func TestMissingMockupClosesClient(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	c := newClient(h, "user_a", "A", "proj_missing", "c1")
	h.addClient(c)

	assert.Equal(t, TypeError, next(t, c).Type)
	_, ok := <-c.send
	assert.False(t, ok)

	_, err := h.Session("proj_missing")
	assert.ErrorIs(t, err, ErrNoMockup)
}

func TestDirLoaderRejectsPaths(t *testing.T) {
	load := DirLoader(t.TempDir(), editor.Options{})
	for _, id := range []string{"../etc/passwd", "a/b", ""} {
		_, err := load(id)
		assert.ErrorIs(t, err, ErrInvalidProject, id)
	}
}

func TestSessionIsShared(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	s1, err := h.Session("proj_demo")
	require.NoError(t, err)
	s2, err := h.Session("proj_demo")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Len(t, s1.Editor().Elements(), 2)
}

func TestRunRegistersUntilCancelled(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	c := newClient(h, "user_a", "A", "proj_demo", "c1")
	h.Register(c)
	assert.Equal(t, TypeWelcome, next(t, c).Type)

	h.Unregister(c)
	for range c.send {
	}

	cancel()
	require.NoError(t, <-done)

	// registration after shutdown does not block
	h.Register(newClient(h, "user_b", "B", "proj_demo", "c2"))
}

func TestRemoteTextIsPlain(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	a := join(h, "user_a", "c1")
	drain(a)

	text := `<b>Ship</b> <script>alert(1)</script>today & tomorrow`
	h.handleMessage(a, command(t, "cmd_1", editor.Command{Type: editor.CmdTextSet, ElementID: "hero-title", Text: &text}))
	assert.Equal(t, TypeOpAck, next(t, a).Type)

	s, err := h.Session("proj_demo")
	require.NoError(t, err)
	override, ok := s.Editor().Snapshot().TextOverrides["hero-title"]
	require.True(t, ok)
	require.NotNil(t, override.Text)
	assert.Equal(t, "Ship today & tomorrow", *override.Text)
}

func TestNoopCommandIsNotBroadcast(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	a := join(h, "user_a", "c1")
	b := join(h, "user_b", "c2")
	drain(a)
	drain(b)

	h.handleMessage(a, command(t, "cmd_1", editor.Command{Type: editor.CmdLayerHide, ElementID: "ghost"}))
	msg := next(t, a)
	require.Equal(t, TypeOpAck, msg.Type)
	var ack CommandAckPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &ack))
	assert.False(t, ack.Result.Changed)
	assert.EqualValues(t, 0, ack.ServerSeq)

	select {
	case <-a.send:
		t.Fatal("unexpected message to sender")
	case <-b.send:
		t.Fatal("unexpected broadcast")
	default:
	}
}

func TestPresenceSelectionTracksLiveLayers(t *testing.T) {
	h := newTestHub(t, HubOptions{})
	a := join(h, "user_a", "c1")
	b := join(h, "user_b", "c2")
	drain(a)
	drain(b)

	update, err := json.Marshal(PresencePayload{Selection: []string{"cards", "ghost", "cards"}})
	require.NoError(t, err)
	h.handleMessage(b, &Message{Type: TypePresenceUpdate, Payload: update})

	msg := next(t, a)
	require.Equal(t, TypePresenceUpdate, msg.Type)
	assert.Equal(t, "c2", msg.ClientID)
	var presence PresencePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &presence))
	assert.Equal(t, []string{"cards"}, presence.Selection)
	assert.Equal(t, "user_b", presence.UserID)

	h.handleMessage(a, command(t, "cmd_1", editor.Command{Type: editor.CmdSelect, IDs: []string{"cards"}}))
	drain(a)
	drain(b)
	h.handleMessage(a, command(t, "cmd_2", editor.Command{Type: editor.CmdLayerDelete}))

	var state *Message
	for state == nil {
		if m := next(t, b); m.Type == TypePresenceState {
			state = m
		}
	}
	var all PresenceStatePayload
	require.NoError(t, json.Unmarshal(state.Payload, &all))
	require.Contains(t, all.Presences, "c2")
	assert.Empty(t, all.Presences["c2"].Selection)
}
