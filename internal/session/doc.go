// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties a live question tree to a Store.
//
// # Key Types
//
//   - Manager: session id, dirty tracking and periodic autosave
//   - Replay: plays a saved tree back node by node
//
// # Usage
//
// Save a tree while it grows:
//
//	mgr := session.NewManager(store, tree.Snapshot, session.DefaultConfig())
//	cfg.OnChange = func(qatree.Snapshot) { mgr.MarkDirty() }
//	mgr.Start(ctx)
//	defer mgr.Close()
//
// Replay a saved tree:
//
//	final, err := session.Replay(ctx, saved.Tree, session.ReplayOptions{}, render)
package session
