// Package store persists metric and variant definitions in SQLite.
//
// Each row keeps the definition body as JSON next to the columns needed for
// lookups (kind, name, source_id) and the last generated query. The store
// implements core.Fetcher so the compiler can read from it directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Record is a stored definition with its bookkeeping columns.
type Record struct {
	ID            string           `json:"id"`
	Kind          string           `json:"kind"`
	Name          string           `json:"name"`
	SourceID      string           `json:"source_id,omitempty"`
	Definition    *core.Definition `json:"definition"`
	CompiledQuery string           `json:"compiled_query,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Store is a SQLite-backed definition store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("opened definition store", "path", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// sourceID is the id a variant's source points at, if it is referenced by id.
func sourceID(def *core.Definition) string {
	if !def.IsVariant() {
		return ""
	}
	if def.Variant.SourceID != "" {
		return def.Variant.SourceID
	}
	return def.Variant.Source.MetricID
}

// Put inserts or replaces a definition and returns its id. Definitions
// without an id get a new UUID. The cached query of the definition and of
// every variant built on it is cleared.
func (s *Store) Put(ctx context.Context, def *core.Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}

	if def.ID() == "" {
		id := uuid.New().String()
		if def.IsVariant() {
			def.Variant.ID = id
		} else {
			def.Metric.ID = id
		}
	}
	id := def.ID()

	body, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to encode definition %q: %w", id, err)
	}

	now := s.now().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO definitions (id, kind, name, source_id, body, compiled_query, created_at, updated_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, NULL, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			source_id = excluded.source_id,
			body = excluded.body,
			compiled_query = NULL,
			updated_at = excluded.updated_at`,
		id, def.Kind(), def.Name(), sourceID(def), string(body), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save definition %q: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		WITH RECURSIVE downstream(id) AS (
			SELECT id FROM definitions WHERE source_id = ?
			UNION
			SELECT d.id FROM definitions d JOIN downstream ON d.source_id = downstream.id
		)
		UPDATE definitions SET compiled_query = NULL WHERE id IN (SELECT id FROM downstream)`,
		id,
	)
	if err != nil {
		return "", fmt.Errorf("failed to invalidate dependents of %q: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit definition %q: %w", id, err)
	}
	return id, nil
}

// Fetch implements core.Fetcher.
func (s *Store) Fetch(ctx context.Context, id string) (*core.Definition, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Definition, nil
}

const selectRecord = `SELECT id, kind, name, COALESCE(source_id, ''), body, COALESCE(compiled_query, ''), created_at, updated_at FROM definitions`

// Get returns the full record for id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.MetricNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get definition %q: %w", id, err)
	}
	return rec, nil
}

// List returns every record ordered by id.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                  Record
		body                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Name, &rec.SourceID, &body, &rec.CompiledQuery, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec.Definition = &core.Definition{}
	if err := json.Unmarshal([]byte(body), rec.Definition); err != nil {
		return nil, fmt.Errorf("corrupt body for %q: %w", rec.ID, err)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at for %q: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at for %q: %w", rec.ID, err)
	}
	return &rec, nil
}

// SaveCompiledQuery caches the generated query for id.
func (s *Store) SaveCompiledQuery(ctx context.Context, id, query string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE definitions SET compiled_query = ?, updated_at = ? WHERE id = ?`,
		query, s.now().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save compiled query for %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.MetricNotFoundError{ID: id}
	}
	return nil
}

// DeleteCascade removes id and every variant whose source chain leads to it.
// It returns the deleted ids in sorted order.
func (s *Store) DeleteCascade(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rows, err := tx.QueryContext(ctx, `
		WITH RECURSIVE doomed(id) AS (
			SELECT id FROM definitions WHERE id = ?
			UNION
			SELECT d.id FROM definitions d JOIN doomed ON d.source_id = doomed.id
		)
		SELECT id FROM doomed ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to collect dependents of %q: %w", id, err)
	}
	var ids []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &core.MetricNotFoundError{ID: id}
	}

	for _, d := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM definitions WHERE id = ?`, d); err != nil {
			return nil, fmt.Errorf("failed to delete %q: %w", d, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete of %q: %w", id, err)
	}

	s.logger.Debug("deleted definitions", "root", id, "count", len(ids))
	return ids, nil
}
