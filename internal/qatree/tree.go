// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package qatree

import (
	"sync"
)

// =============================================================================
// TREE
// =============================================================================

// Tree is the live question/answer tree of one exploration session.
// All methods are safe for concurrent use.
type Tree struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	// newID allocates child ids. Replaceable in tests.
	newID func() string
}

// NewTree creates a tree holding only the root question.
func NewTree(seed string) *Tree {
	return &Tree{
		nodes: map[string]*Node{
			RootID: {Question: seed},
		},
		newID: NewID,
	}
}

// FromSnapshot rebuilds a live tree from a snapshot.
func FromSnapshot(s Snapshot) *Tree {
	t := &Tree{
		nodes: make(map[string]*Node, len(s)),
		newID: NewID,
	}
	for id, n := range s {
		c := n.Clone()
		t.nodes[id] = &c
	}
	return t
}

// =============================================================================
// READS
// =============================================================================

// Get returns a copy of the node with the given id.
func (t *Tree) Get(id string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// Has returns true if the id is in the tree.
func (t *Tree) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// CountAnswered returns the number of nodes that have started processing
// and have a non-empty answer.
func (t *Tree) CountAnswered() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, n := range t.nodes {
		if n.StartedProcessing && n.Answer != "" {
			count++
		}
	}
	return count
}

// ParentOf implements Lookup.
func (t *Tree) ParentOf(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parentOf(id)
}

func (t *Tree) parentOf(id string) (string, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return "", false
	}
	return n.ParentID, true
}

// Snapshot returns a deep copy of the whole tree.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(Snapshot, len(t.nodes))
	for id, n := range t.nodes {
		out[id] = n.Clone()
	}
	return out
}

// UnansweredLeaves returns, breadth first, the ids of nodes that have not
// started processing and lie on a root path through focusID. An empty
// focusID admits every such node.
func (t *Tree) UnansweredLeaves(focusID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lookup := lockedLookup{t}
	var ids []string
	queue := []string{RootID}
	seen := make(map[string]bool, len(t.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		n, ok := t.nodes[id]
		if !ok {
			continue
		}
		if !n.StartedProcessing {
			if focusID == "" || IsAncestorOrDescendant(lookup, focusID, id) {
				ids = append(ids, id)
			}
		}
		queue = append(queue, n.ChildIDs...)
	}
	return ids
}

// lockedLookup reads parent pointers of a tree whose lock is already held.
type lockedLookup struct{ t *Tree }

func (l lockedLookup) ParentOf(id string) (string, bool) {
	return l.t.parentOf(id)
}

// =============================================================================
// WRITES
// =============================================================================

// AppendAnswer appends a streamed chunk to the node's answer and returns
// the new answer.
func (t *Tree) AppendAnswer(id, chunk string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return "", notFound(id)
	}
	n.Answer += chunk
	return n.Answer, nil
}

// SetQuestion overwrites the node's question text.
func (t *Tree) SetQuestion(id, question string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return notFound(id)
	}
	n.Question = question
	return nil
}

// AddChild creates an empty child under parentID and appends it to the
// parent's children. The new id never collides with an existing node.
func (t *Tree) AddChild(parentID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, ok := t.nodes[parentID]
	if !ok {
		return "", notFound(parentID)
	}
	id := t.newID()
	for {
		if _, taken := t.nodes[id]; !taken && id != "" {
			break
		}
		id = NewID()
	}
	t.nodes[id] = &Node{ParentID: parentID}
	parent.ChildIDs = append(parent.ChildIDs, id)
	return id, nil
}

// MarkStarted sets StartedProcessing. It returns false if the node had
// already started, in which case the caller must not process it.
func (t *Tree) MarkStarted(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return false, notFound(id)
	}
	if n.StartedProcessing {
		return false, nil
	}
	n.StartedProcessing = true
	return true, nil
}

// MarkFailed flags the node as failed with the given cause.
func (t *Tree) MarkFailed(id string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return notFound(id)
	}
	n.Failed = true
	if cause != nil {
		n.Error = cause.Error()
	}
	return nil
}

// DeleteBranch removes id and all of its descendants and unlinks id from
// its parent. It returns the removed ids, parents before children. Deleting
// an unknown id is a no-op.
func (t *Tree) DeleteBranch(id string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	if parent, ok := t.nodes[n.ParentID]; ok {
		parent.ChildIDs = removeID(parent.ChildIDs, id)
	}
	var removed []string
	t.deleteRecursive(id, &removed)
	return removed
}

func (t *Tree) deleteRecursive(id string, removed *[]string) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	children := append([]string(nil), n.ChildIDs...)
	delete(t.nodes, id)
	*removed = append(*removed, id)
	for _, child := range children {
		t.deleteRecursive(child, removed)
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
