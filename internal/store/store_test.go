package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/patch"
)

var savedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s := New(mock, zaptest.NewLogger(t))
	s.now = func() time.Time { return savedAt }
	return s, mock
}

func samplePatch() patch.Patch {
	snap := document.NewSnapshot()
	snap.Transforms["hero-title"] = document.Transform{X: 15, Y: -5, ScaleX: 1, ScaleY: 1}
	return patch.Build(patch.Input{
		Elements: []document.Element{{ID: "hero-title", Tag: "h1", Kind: document.KindText, ParentID: document.RootID}},
		Snapshot: snap,
		ToolMode: "cursor",
	})
}

func TestMigrate(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS iteration_patches")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO iteration_patches")).
		WithArgs(pgxmock.AnyArg(), "proj_1", patch.Schema, pgxmock.AnyArg(), savedAt).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(3))

	sum, err := s.Save(context.Background(), "proj_1", samplePatch())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Version)
	assert.Equal(t, "proj_1", sum.ProjectID)
	assert.Equal(t, savedAt, sum.CreatedAt)
	assert.Regexp(t, `^patch_`, sum.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWrapsError(t *testing.T) {
	s, mock := newStore(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO iteration_patches")).
		WithArgs(pgxmock.AnyArg(), "proj_1", patch.Schema, pgxmock.AnyArg(), savedAt).
		WillReturnError(boom)

	_, err := s.Save(context.Background(), "proj_1", samplePatch())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "insert patch")
}

func TestLatest(t *testing.T) {
	s, mock := newStore(t)
	want := samplePatch()
	payload, err := patch.Encode(want)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM iteration_patches WHERE project_id = $1")).
		WithArgs("proj_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "project_id", "version", "payload", "created_at"}).
			AddRow("patch_1", "proj_1", 2, payload, savedAt))

	rec, err := s.Latest(context.Background(), "proj_1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, want.Transforms, rec.Patch.Transforms)
	assert.Equal(t, patch.Schema, rec.Patch.Schema)
}

func TestLatestNotFound(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM iteration_patches WHERE project_id = $1")).
		WithArgs("proj_empty").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Latest(context.Background(), "proj_empty")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version DESC LIMIT $2")).
		WithArgs("proj_1", 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "project_id", "version", "created_at"}).
			AddRow("patch_2", "proj_1", 2, savedAt).
			AddRow("patch_1", "proj_1", 1, savedAt.Add(-time.Hour)))

	list, err := s.List(context.Background(), "proj_1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "patch_2", list[0].ID)
	assert.Equal(t, 1, list[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
