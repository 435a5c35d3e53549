// Package server exposes editor sessions over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/auth"
	"github.com/gemstudio/gem/editor-go/internal/collab"
	"github.com/gemstudio/gem/editor-go/internal/history"
	"github.com/gemstudio/gem/editor-go/internal/patch"
	"github.com/gemstudio/gem/editor-go/internal/store"
	"github.com/gemstudio/gem/editor-go/internal/typeid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PlaygroundProjectID accepts anonymous websocket clients.
const PlaygroundProjectID = "proj_playground"

const historyLimit = 20

// PatchStore persists published patches.
type PatchStore interface {
	Save(ctx context.Context, projectID string, p patch.Patch) (store.Summary, error)
	Latest(ctx context.Context, projectID string) (store.Record, error)
	List(ctx context.Context, projectID string, limit int) ([]store.Summary, error)
}

type Server struct {
	hub     *collab.Hub
	auth    *auth.Service
	patches PatchStore
	origins []string
	log     *zap.Logger
}

func New(hub *collab.Hub, authService *auth.Service, patches PatchStore, origins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:     hub,
		auth:    authService,
		patches: patches,
		origins: origins,
		log:     logger.Named("http"),
	}
}

// Router wires every route.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(recovery(s.log))
	r.Use(requestLogger(s.log))
	r.Use(cors(s.origins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth.AuthMiddleware)

	api.HandleFunc("/me", auth.Me).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectId}/patch", s.getPatch).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/projects/{projectId}/patch/latest", s.getPublished).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/projects/{projectId}/patch/publish", s.publish).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/projects/{projectId}/history", s.getHistory).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws/project/{projectId}", s.handleWebSocket)
	return r
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*collab.Session, bool) {
	sess, err := s.hub.Session(mux.Vars(r)["projectId"])
	switch {
	case errors.Is(err, collab.ErrInvalidProject):
		writeError(w, http.StatusBadRequest, "invalid project id")
		return nil, false
	case errors.Is(err, collab.ErrNoMockup):
		writeError(w, http.StatusNotFound, "project not found")
		return nil, false
	case err != nil:
		s.log.Error("open session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open project")
		return nil, false
	}
	return sess, true
}

func (s *Server) getPatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Patch())
}

func (s *Server) getPublished(w http.ResponseWriter, r *http.Request) {
	rec, err := s.patches.Latest(r.Context(), mux.Vars(r)["projectId"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "nothing published")
		return
	}
	if err != nil {
		s.log.Error("latest patch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load patch")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	summary, err := s.patches.Save(r.Context(), sess.ProjectID(), sess.Patch())
	if err != nil {
		s.log.Error("publish patch", zap.String("project", sess.ProjectID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to publish patch")
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

type historyResponse struct {
	Entries   []history.Item  `json:"entries"`
	Published []store.Summary `json:"published"`
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	published, err := s.patches.List(r.Context(), sess.ProjectID(), historyLimit)
	if err != nil {
		s.log.Error("list patches", zap.String("project", sess.ProjectID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list patches")
		return
	}
	if published == nil {
		published = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: sess.History(), Published: published})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var id auth.Identity
	if projectID == PlaygroundProjectID {
		id = auth.Identity{UserID: "anon-" + uuid.New().String()[:8], DisplayName: "Anonymous"}
	} else {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		var err error
		if id, err = s.auth.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	if _, ok := s.session(w, r); !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}

	client := collab.NewClient(s.hub, conn, id.UserID, id.DisplayName, projectID, typeid.NewClientID())
	s.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
