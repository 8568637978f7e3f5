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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// BADGER STORE
// =============================================================================

const treeKeyPrefix = "tree/"

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// BadgerStore keeps saved trees as JSON values under "tree/<id>" keys.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func treeKey(id string) []byte {
	return []byte(treeKeyPrefix + id)
}

// SaveSnapshot implements Store.
func (s *BadgerStore) SaveSnapshot(ctx context.Context, tree qatree.Snapshot, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	saved, err := newSaved(tree, sessionID, s.now())
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(sessionID))
		switch {
		case err == nil:
			prev, err := decodeItem(item)
			if err != nil {
				return err
			}
			saved.CreatedAt = prev.CreatedAt
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("read tree %s: %w", sessionID, err)
		}

		data, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("encode tree: %w", err)
		}
		return txn.Set(treeKey(sessionID), data)
	})
}

// LoadHistory implements Store.
func (s *BadgerStore) LoadHistory(ctx context.Context) ([]SavedTree, error) {
	trees := []SavedTree{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(treeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			saved, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			trees = append(trees, *saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(trees)
	return trees, nil
}

// Load implements Store.
func (s *BadgerStore) Load(ctx context.Context, id string) (*SavedTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	var saved *SavedTree
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		saved, err = decodeItem(item)
		return err
	})
	return saved, err
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(treeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(treeKey(id))
	})
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func decodeItem(item *badger.Item) (*SavedTree, error) {
	var saved SavedTree
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &saved)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return &saved, nil
}
