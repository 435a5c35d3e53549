package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gemstudio/gem/editor-go/internal/auth"
	"github.com/gemstudio/gem/editor-go/internal/collab"
	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/patch"
	"github.com/gemstudio/gem/editor-go/internal/store"
)

const mockup = `<html><body>
  <h1 data-gem-id="hero-title" style="left: 20px; top: 20px; width: 100px; height: 40px">Launch faster</h1>
</body></html>`

type fakeStore struct {
	saved     []string
	published []store.Summary
}

func (f *fakeStore) Save(_ context.Context, projectID string, p patch.Patch) (store.Summary, error) {
	f.saved = append(f.saved, projectID)
	s := store.Summary{ID: "patch_1", ProjectID: projectID, Version: len(f.saved)}
	f.published = append(f.published, s)
	return s, nil
}

func (f *fakeStore) Latest(_ context.Context, projectID string) (store.Record, error) {
	if len(f.published) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	last := f.published[len(f.published)-1]
	return store.Record{ID: last.ID, ProjectID: projectID, Version: last.Version}, nil
}

func (f *fakeStore) List(context.Context, string, int) ([]store.Summary, error) {
	return f.published, nil
}

type fixture struct {
	handler http.Handler
	hub     *collab.Hub
	auth    *auth.Service
	store   *fakeStore
	token   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, id := range []string{"proj_demo", PlaygroundProjectID} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".html"), []byte(mockup), 0o644))
	}

	logger := zaptest.NewLogger(t)
	hub := collab.NewHub(collab.DirLoader(dir, editor.Options{Logger: logger}), collab.HubOptions{Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	authService := auth.NewService("test-secret", time.Hour)
	token, err := authService.IssueToken(auth.Identity{UserID: "user_1", DisplayName: "Ana"})
	require.NoError(t, err)

	fs := &fakeStore{}
	srv := New(hub, authService, fs, []string{"localhost:5173"}, logger)
	return &fixture{handler: srv.Router(), hub: hub, auth: authService, store: fs, token: token}
}

func (f *fixture) do(method, path string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/projects/proj_demo/patch", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPatch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/projects/proj_demo/patch", true)
	require.Equal(t, http.StatusOK, rec.Code)
	p, err := patch.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, patch.Schema, p.Schema)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/projects/proj_missing/patch", true).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/projects/bad.id/patch", true).Code)
}

func TestPublishAndHistory(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/projects/proj_demo/patch/latest", true).Code)

	rec := f.do(http.MethodPost, "/api/projects/proj_demo/patch/publish", true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"proj_demo"}, f.store.saved)

	rec = f.do(http.MethodGet, "/api/projects/proj_demo/patch/latest", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/projects/proj_demo/history", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var body historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "Initial", body.Entries[0].Label)
	require.Len(t, body.Published, 1)
	assert.Equal(t, 1, body.Published[0].Version)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/projects/proj_demo/patch", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketRequiresToken(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/ws/project/proj_demo", false).Code)
}

func TestPlaygroundWebSocket(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/project/" + PlaygroundProjectID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg collab.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, collab.TypeWelcome, msg.Type)

	payload, err := json.Marshal(collab.CommandPayload{ID: "cmd_1", Command: editor.Command{Type: editor.CmdZoomIn}})
	require.NoError(t, err)
	out, err := json.Marshal(collab.Message{Type: collab.TypeEditorCommand, Payload: payload})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, out))

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, collab.TypeOpAck, msg.Type)
}
