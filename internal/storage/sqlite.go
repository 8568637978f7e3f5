// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// SQLITE STORE
// =============================================================================

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trees (
	id         TEXT PRIMARY KEY,
	seed_query TEXT NOT NULL,
	tree       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trees_created ON trees(created_at DESC);
`

// SQLiteStore keeps saved trees in one SQLite table. Times are stored as
// Unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path. The path ":memory:"
// opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// SaveSnapshot implements Store.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, tree qatree.Snapshot, sessionID string) error {
	saved, err := newSaved(tree, sessionID, s.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(saved.Tree)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trees (id, seed_query, tree, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seed_query = excluded.seed_query,
			tree       = excluded.tree,
			updated_at = excluded.updated_at`,
		saved.ID, saved.SeedQuery, string(data),
		saved.CreatedAt.UnixMilli(), saved.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save tree %s: %w", sessionID, err)
	}
	return nil
}

// LoadHistory implements Store.
func (s *SQLiteStore) LoadHistory(ctx context.Context) ([]SavedTree, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed_query, tree, created_at, updated_at
		FROM trees ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	trees := []SavedTree{}
	for rows.Next() {
		saved, err := scanTree(rows)
		if err != nil {
			return nil, err
		}
		trees = append(trees, *saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return trees, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*SavedTree, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed_query, tree, created_at, updated_at
		FROM trees WHERE id = ?`, id)
	saved, err := scanTree(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return saved, err
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM trees WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTree(r rowScanner) (*SavedTree, error) {
	var (
		saved            SavedTree
		data             string
		created, updated int64
	)
	if err := r.Scan(&saved.ID, &saved.SeedQuery, &data, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &saved.Tree); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", saved.ID, err)
	}
	saved.CreatedAt = time.UnixMilli(created)
	saved.UpdatedAt = time.UnixMilli(updated)
	return &saved, nil
}
