// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists question trees between sessions.
//
// A saved tree is keyed by its session id and carries the seed question and
// creation time alongside the full node map. Three backends implement Store:
//
//   - FileStore: one JSON file per session, written atomically
//   - SQLiteStore: a single table in a pure Go SQLite database
//   - BadgerStore: an embedded key/value store
//
// # Usage
//
//	store, err := storage.Open(storage.Config{Backend: storage.BackendFile, Path: dir})
//	err = store.SaveSnapshot(ctx, tree.Snapshot(), sessionID)
//	history, err := store.LoadHistory(ctx)
//
// # Storage Location
//
// Trees are stored under ~/.whytree/trees/ unless configured otherwise.
package storage
