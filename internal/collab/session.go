package collab

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/history"
	"github.com/gemstudio/gem/editor-go/internal/htmldom"
	"github.com/gemstudio/gem/editor-go/internal/patch"
)

var (
	ErrNoMockup       = errors.New("mock-up not found")
	ErrInvalidProject = errors.New("invalid project id")
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

var plainText = bluemonday.StrictPolicy()

// stripMarkup reduces remote text to plain characters.
func stripMarkup(s string) string {
	return html.UnescapeString(plainText.Sanitize(s))
}

// Session is the authoritative editor of one project.
type Session struct {
	mu        sync.Mutex
	projectID string
	editor    *editor.Editor
	serverSeq int64
}

func NewSession(projectID string, ed *editor.Editor) *Session {
	return &Session{projectID: projectID, editor: ed}
}

// Loader opens the session of a project.
type Loader func(projectID string) (*Session, error)

// DirLoader reads <dir>/<projectID>.html and opens an editor over it.
func DirLoader(dir string, opts editor.Options) Loader {
	return func(projectID string) (*Session, error) {
		if !projectIDPattern.MatchString(projectID) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProject, projectID)
		}
		path := filepath.Join(dir, projectID+".html")
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoMockup, projectID)
		}
		if err != nil {
			return nil, fmt.Errorf("open mock-up: %w", err)
		}
		defer f.Close()

		surface, err := htmldom.Load(f)
		if err != nil {
			return nil, fmt.Errorf("load mock-up %s: %w", projectID, err)
		}
		o := opts
		if o.Logger != nil {
			o.Logger = o.Logger.With(zap.String("project", projectID))
		}
		return NewSession(projectID, editor.New(surface, o)), nil
	}
}

func (s *Session) ProjectID() string { return s.projectID }

// Editor exposes the session editor for read access.
func (s *Session) Editor() *editor.Editor { return s.editor }

// Apply dispatches cmd and returns the result with the server sequence
// number assigned to it. Unchanged results do not advance the sequence.
// Markup in text commands is stripped.
func (s *Session) Apply(cmd editor.Command) (editor.Result, int64, error) {
	if cmd.Type == editor.CmdTextSet && cmd.Text != nil {
		text := stripMarkup(*cmd.Text)
		cmd.Text = &text
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.editor.Dispatch(cmd)
	if err != nil {
		return res, s.serverSeq, err
	}
	if res.Changed {
		s.serverSeq++
	}
	return res, s.serverSeq, nil
}

func (s *Session) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverSeq
}

// LiveIDs keeps the ids of ids that name live layers, in order.
func (s *Session) LiveIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	live := make(map[string]bool)
	for _, e := range s.editor.LayerEntries() {
		live[e.ID] = true
	}
	var out []string
	for _, id := range ids {
		if live[id] && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) Patch() patch.Patch { return s.editor.Patch() }

func (s *Session) History() []history.Item { return s.editor.History() }

// Close stops the editor's pending history commit.
func (s *Session) Close() { s.editor.Close() }
