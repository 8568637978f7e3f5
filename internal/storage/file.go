// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one JSON file per saved tree.
type FileStore struct {
	// BaseDir is the directory holding <id>.json files.
	// Default: ~/.whytree/trees/
	BaseDir string

	// MaxTrees limits stored trees (0 = unlimited). The least recently
	// updated trees are removed first.
	MaxTrees int

	Logger *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		BaseDir: baseDir,
		Logger:  slog.Default(),
		now:     time.Now,
	}, nil
}

// DefaultFileStore creates a store under ~/.whytree/trees/.
func DefaultFileStore() (*FileStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(homeDir, ".whytree", "trees"))
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// SaveSnapshot implements Store.
func (s *FileStore) SaveSnapshot(ctx context.Context, tree qatree.Snapshot, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := newSaved(tree, sessionID, s.now())
	if err != nil {
		return err
	}
	if prev, err := s.read(sessionID); err == nil {
		saved.CreatedAt = prev.CreatedAt
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	if err := util.AtomicWriteFile(s.filePath(sessionID), data, 0644); err != nil {
		return err
	}

	if s.MaxTrees > 0 {
		s.enforceLimit()
	}
	return nil
}

// enforceLimit removes the least recently updated trees over the limit.
func (s *FileStore) enforceLimit() {
	trees, err := s.readAll()
	if err != nil || len(trees) <= s.MaxTrees {
		return
	}

	sort.Slice(trees, func(i, j int) bool {
		return trees[i].UpdatedAt.Before(trees[j].UpdatedAt)
	})

	excess := len(trees) - s.MaxTrees
	for i := 0; i < excess; i++ {
		if err := os.Remove(s.filePath(trees[i].ID)); err != nil && !os.IsNotExist(err) {
			s.logger().Warn("failed to prune saved tree", "id", trees[i].ID, "error", err)
		}
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, id string) (*SavedTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// LoadHistory implements Store.
func (s *FileStore) LoadHistory(ctx context.Context) ([]SavedTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trees, err := s.readAll()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(trees)
	return trees, nil
}

func (s *FileStore) read(id string) (*SavedTree, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var saved SavedTree
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", id, err)
	}
	return &saved, nil
}

func (s *FileStore) readAll() ([]SavedTree, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SavedTree{}, nil
		}
		return nil, err
	}

	trees := make([]SavedTree, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		saved, err := s.read(id)
		if err != nil {
			s.logger().Warn("skipping unreadable saved tree", "id", id, "error", err)
			continue
		}
		trees = append(trees, *saved)
	}
	return trees, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

func (s *FileStore) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
