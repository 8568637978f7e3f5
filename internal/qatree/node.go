// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package qatree

import (
	"errors"
	"fmt"
)

// RootID is the id of the seed node of every tree.
const RootID = "0"

// =============================================================================
// NODE
// =============================================================================

// Node is a single question/answer pair in the tree.
//
// Answer is append-only while the node is being generated. Question of a
// generated child is overwritten as the partial parse of its parent's
// follow-up list improves.
type Node struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`

	// ParentID is empty for the root.
	ParentID string `json:"parent,omitempty"`

	// ChildIDs are in generation order.
	ChildIDs []string `json:"children,omitempty"`

	// StartedProcessing flips false->true at most once.
	StartedProcessing bool `json:"startedProcessing,omitempty"`

	// Failed marks a node whose answer could not be generated.
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// IsRoot returns true if the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == ""
}

// Settled returns true once the node has an answer or has failed.
func (n Node) Settled() bool {
	return n.Failed || (n.StartedProcessing && n.Answer != "")
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	if n.ChildIDs != nil {
		c.ChildIDs = make([]string, len(n.ChildIDs))
		copy(c.ChildIDs, n.ChildIDs)
	}
	return c
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a detached deep copy of a tree keyed by node id.
type Snapshot map[string]Node

// ParentOf implements Lookup.
func (s Snapshot) ParentOf(id string) (string, bool) {
	n, ok := s[id]
	if !ok {
		return "", false
	}
	return n.ParentID, true
}

// Root returns the root node of the snapshot.
func (s Snapshot) Root() (Node, bool) {
	n, ok := s[RootID]
	return n, ok
}

// SeedQuery returns the root question, or "" for an empty snapshot.
func (s Snapshot) SeedQuery() string {
	return s[RootID].Question
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, n := range s {
		out[id] = n.Clone()
	}
	return out
}

// Walk visits nodes breadth first from the root, children in generation
// order. Ids referenced by ChildIDs but missing from the snapshot are
// skipped. Returning false from fn stops the walk.
func (s Snapshot) Walk(fn func(id string, n Node, depth int) bool) {
	type item struct {
		id    string
		depth int
	}
	if _, ok := s[RootID]; !ok {
		return
	}
	queue := []item{{RootID, 0}}
	seen := make(map[string]bool, len(s))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.id] {
			continue
		}
		seen[cur.id] = true
		n, ok := s[cur.id]
		if !ok {
			continue
		}
		if !fn(cur.id, n, cur.depth) {
			return
		}
		for _, child := range n.ChildIDs {
			queue = append(queue, item{child, cur.depth + 1})
		}
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNodeNotFound is returned when an id is not present in the tree.
var ErrNodeNotFound = errors.New("node not found")

// NodeError ties an error to a node id.
type NodeError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

func notFound(id string) error {
	return &NodeError{ID: id, Err: ErrNodeNotFound}
}

// Get returns the node with the given id.
func (s Snapshot) Get(id string) (Node, bool) {
	n, ok := s[id]
	return n, ok
}
