// Package store persists published iteration patches in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/patch"
	"github.com/gemstudio/gem/editor-go/internal/typeid"
)

var ErrNotFound = errors.New("patch not found")

// DBPool is the subset of pgxpool.Pool the store uses.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS iteration_patches (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL,
    version     INTEGER NOT NULL,
    schema      TEXT NOT NULL,
    payload     JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (project_id, version)
);`

const insertSQL = `
INSERT INTO iteration_patches (id, project_id, version, schema, payload, created_at)
SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5
FROM iteration_patches WHERE project_id = $2
RETURNING version;`

const latestSQL = `
SELECT id, project_id, version, payload, created_at
FROM iteration_patches WHERE project_id = $1
ORDER BY version DESC LIMIT 1;`

const listSQL = `
SELECT id, project_id, version, created_at
FROM iteration_patches WHERE project_id = $1
ORDER BY version DESC LIMIT $2;`

// Record is a stored patch.
type Record struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"createdAt"`
	Patch     patch.Patch `json:"patch"`
}

// Summary is a Record without its payload.
type Summary struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	pool DBPool
	now  func() time.Time
	log  *zap.Logger
}

// NewPool opens a pgx pool for url.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

func New(pool DBPool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, now: time.Now, log: logger.Named("store")}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Migrate creates the patch table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create iteration_patches: %w", err)
	}
	return nil
}

// Save appends p as the next version for projectID.
func (s *Store) Save(ctx context.Context, projectID string, p patch.Patch) (Summary, error) {
	payload, err := patch.Encode(p)
	if err != nil {
		return Summary{}, fmt.Errorf("encode patch: %w", err)
	}
	sum := Summary{
		ID:        typeid.NewPatchID(),
		ProjectID: projectID,
		CreatedAt: s.now().UTC(),
	}
	err = s.pool.QueryRow(ctx, insertSQL, sum.ID, projectID, p.Schema, payload, sum.CreatedAt).Scan(&sum.Version)
	if err != nil {
		return Summary{}, fmt.Errorf("insert patch: %w", err)
	}
	s.log.Info("patch saved",
		zap.String("project", projectID),
		zap.String("id", sum.ID),
		zap.Int("version", sum.Version))
	return sum, nil
}

// Latest returns the newest patch of projectID.
func (s *Store) Latest(ctx context.Context, projectID string) (Record, error) {
	var (
		rec     Record
		payload []byte
	)
	err := s.pool.QueryRow(ctx, latestSQL, projectID).Scan(&rec.ID, &rec.ProjectID, &rec.Version, &payload, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get latest patch: %w", err)
	}
	if rec.Patch, err = patch.Decode(payload); err != nil {
		return Record{}, fmt.Errorf("decode patch %s: %w", rec.ID, err)
	}
	return rec, nil
}

// List returns up to limit summaries of projectID, newest first.
func (s *Store) List(ctx context.Context, projectID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, listSQL, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list patches: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.ProjectID, &sum.Version, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patch: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list patches: %w", err)
	}
	return out, nil
}
