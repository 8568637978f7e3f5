// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package qatree provides the mutable question/answer tree that an
// exploration session grows.
//
// A tree always has exactly one root with id "0". Children get random
// base-36 ids the moment their slot is observed in a streamed response, so
// they can be rendered before their question text is complete.
//
// # Key Types
//
//   - Node: A question, its streamed answer and its generated children
//   - Tree: The live, mutex-guarded tree owned by one session
//   - Snapshot: A deep copy handed to views and stores
//   - Lookup: Parent-pointer access used by the focus index
//
// # Usage
//
//	tree := qatree.NewTree("Why is the sky blue?")
//	_, _ = tree.AppendAnswer(qatree.RootID, "Because ")
//	childID, _ := tree.AddChild(qatree.RootID)
//	_ = tree.SetQuestion(childID, "Why does Rayleigh scattering occur?")
//
//	snap := tree.Snapshot() // safe to hand to another goroutine
//
// # Focus
//
// IsAncestorOrDescendant answers whether two nodes lie on one root path. It
// only chases parent pointers and allocates nothing.
package qatree
