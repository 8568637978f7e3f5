// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// SAVED TREE TYPE
// =============================================================================

// SavedTree is a persisted question tree.
type SavedTree struct {
	ID        string          `json:"id"`
	Tree      qatree.Snapshot `json:"tree"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	SeedQuery string          `json:"seed_query"`
}

// NodeCount returns the number of nodes in the saved tree.
func (s SavedTree) NodeCount() int {
	return len(s.Tree)
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists and retrieves saved trees. Implementations are safe for
// concurrent use.
type Store interface {
	// SaveSnapshot creates or replaces the tree saved under sessionID.
	// CreatedAt is kept from the first save.
	SaveSnapshot(ctx context.Context, tree qatree.Snapshot, sessionID string) error

	// LoadHistory returns every saved tree, newest first.
	LoadHistory(ctx context.Context) ([]SavedTree, error)

	// Load returns one saved tree or ErrNotFound.
	Load(ctx context.Context, id string) (*SavedTree, error)

	// Delete removes one saved tree or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases the backend.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when no tree is saved under the id.
	ErrNotFound = errors.New("saved tree not found")

	// ErrInvalidID is returned for empty ids or ids that are unsafe as keys.
	ErrInvalidID = errors.New("invalid session id")

	// ErrNoRoot is returned when saving a snapshot without a root node.
	ErrNoRoot = errors.New("snapshot has no root node")

	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// newSaved validates a snapshot and builds the record to persist.
func newSaved(tree qatree.Snapshot, id string, now time.Time) (*SavedTree, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if _, ok := tree.Root(); !ok {
		return nil, ErrNoRoot
	}
	return &SavedTree{
		ID:        id,
		Tree:      tree.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
		SeedQuery: tree.SeedQuery(),
	}, nil
}

// sortNewestFirst orders by creation time, then id for stability.
func sortNewestFirst(trees []SavedTree) {
	sort.Slice(trees, func(i, j int) bool {
		if !trees[i].CreatedAt.Equal(trees[j].CreatedAt) {
			return trees[i].CreatedAt.After(trees[j].CreatedAt)
		}
		return trees[i].ID < trees[j].ID
	})
}

// =============================================================================
// BACKEND SELECTION
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Backends lists the supported backend names.
func Backends() []string {
	return []string{BackendFile, BackendSQLite, BackendBadger}
}

// Config selects and locates a backend.
type Config struct {
	// Backend is one of BackendFile, BackendSQLite or BackendBadger.
	Backend string

	// Path is the data directory. Each backend keeps its files in a
	// subdirectory or file beneath it.
	Path string

	// MaxTrees limits stored trees for the file backend (0 = unlimited).
	MaxTrees int

	Logger *slog.Logger
}

// Open creates the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		s, err := NewFileStore(filepath.Join(cfg.Path, "trees"))
		if err != nil {
			return nil, err
		}
		s.MaxTrees = cfg.MaxTrees
		return s, nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(cfg.Path, "trees.db"))
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: filepath.Join(cfg.Path, "badger"), SyncWrites: true, Logger: cfg.Logger})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
