// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the SQLite manifest of indexed items. It lets a re-ingestion run
// compute which vector ids became stale for a source path so they can be
// deleted from the index.
type Store struct {
	db *sqlx.DB
}

// Item is one indexed chunk as recorded in the manifest.
type Item struct {
	ID         string    `db:"id"`
	SourcePath string    `db:"source_path"`
	Chunk      int       `db:"chunk"`
	URL        string    `db:"url"`
	Language   string    `db:"language"`
	Title      string    `db:"title"`
	IndexedAt  time.Time `db:"indexed_at"`
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`CREATE TABLE IF NOT EXISTS indexed_items (
                id TEXT PRIMARY KEY,
                source_path TEXT NOT NULL,
                chunk INTEGER NOT NULL,
                url TEXT NOT NULL,
                language TEXT NOT NULL,
                title TEXT NOT NULL DEFAULT '',
                indexed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_indexed_items_source ON indexed_items(source_path);`,
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated on first use.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", abs)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReplaceSource swaps the manifest rows for one source path and returns the
// ids that were previously recorded but no longer exist, i.e. the vector ids
// that must be deleted from the index.
func (s *Store) ReplaceSource(ctx context.Context, sourcePath string, items []Item) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin catalog tx: %w", err)
	}
	defer tx.Rollback()

	var previous []string
	if err := tx.SelectContext(ctx, &previous, `SELECT id FROM indexed_items WHERE source_path = ?`, sourcePath); err != nil {
		return nil, fmt.Errorf("load previous ids: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM indexed_items WHERE source_path = ?`, sourcePath); err != nil {
		return nil, fmt.Errorf("clear source rows: %w", err)
	}
	current := make(map[string]struct{}, len(items))
	for _, item := range items {
		current[item.ID] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO indexed_items (id, source_path, chunk, url, language, title) VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, item.SourcePath, item.Chunk, item.URL, item.Language, item.Title,
		); err != nil {
			return nil, fmt.Errorf("insert item %s: %w", item.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit catalog tx: %w", err)
	}
	return StaleIDs(previous, current), nil
}

// SourcePaths lists every source path currently present in the manifest.
func (s *Store) SourcePaths(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog not initialised")
	}
	var paths []string
	if err := s.db.SelectContext(ctx, &paths, `SELECT DISTINCT source_path FROM indexed_items ORDER BY source_path`); err != nil {
		return nil, fmt.Errorf("list source paths: %w", err)
	}
	return paths, nil
}

// DeleteSource removes a source's rows and returns the ids that were removed.
func (s *Store) DeleteSource(ctx context.Context, sourcePath string) ([]string, error) {
	return s.ReplaceSource(ctx, sourcePath, nil)
}

// StaleIDs returns the previous ids absent from the current set, preserving
// their original order.
func StaleIDs(previous []string, current map[string]struct{}) []string {
	var stale []string
	for _, id := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		stale = append(stale, id)
	}
	return stale
}
