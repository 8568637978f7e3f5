// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package view

import (
	"github.com/jeranaias/whytree/internal/qatree"
)

// Kind tells question elements from answer elements.
type Kind int

const (
	Question Kind = iota
	Answer
)

// Node is one renderable element.
type Node struct {
	ID     string // "q-<id>" or "a-<id>"
	TreeID string
	Kind   Kind
	Text   string
	Depth  int

	// ParentID is the element this one hangs from, "" for the root question.
	ParentID string

	// Dimmed is set when a focus is active and the node is outside it.
	Dimmed bool

	// Pending is set while the tree node has no settled answer.
	Pending bool
	Failed  bool
}

// Edge connects two elements.
type Edge struct {
	ID       string // "<source>-<target>"
	Source   string
	Target   string
	Animated bool
}

// Model is the projected view of a tree.
type Model struct {
	Nodes []Node
	Edges []Edge
}

// QuestionID returns the element id of a tree node's question.
func QuestionID(treeID string) string { return "q-" + treeID }

// AnswerID returns the element id of a tree node's answer.
func AnswerID(treeID string) string { return "a-" + treeID }

// Project converts snap into a view model. Edges animate while playing.
func Project(snap qatree.Snapshot, focusID string, playing bool) Model {
	var m Model
	if focusID != "" {
		if _, ok := snap[focusID]; !ok {
			focusID = ""
		}
	}

	snap.Walk(func(id string, n qatree.Node, depth int) bool {
		dimmed := focusID != "" && !qatree.IsAncestorOrDescendant(snap, focusID, id)
		pending := !n.Settled()

		q := Node{
			ID:      QuestionID(id),
			TreeID:  id,
			Kind:    Question,
			Text:    n.Question,
			Depth:   depth,
			Dimmed:  dimmed,
			Pending: pending,
			Failed:  n.Failed,
		}
		if n.ParentID != "" {
			q.ParentID = AnswerID(n.ParentID)
			if _, ok := snap[n.ParentID]; ok && snap[n.ParentID].Answer == "" {
				q.ParentID = QuestionID(n.ParentID)
			}
		}
		m.addNode(q, playing)

		if n.Answer != "" {
			m.addNode(Node{
				ID:       AnswerID(id),
				TreeID:   id,
				Kind:     Answer,
				Text:     n.Answer,
				Depth:    depth,
				ParentID: QuestionID(id),
				Dimmed:   dimmed,
				Pending:  pending,
				Failed:   n.Failed,
			}, playing)
		}
		return true
	})
	return m
}

func (m *Model) addNode(n Node, playing bool) {
	m.Nodes = append(m.Nodes, n)
	if n.ParentID == "" {
		return
	}
	m.Edges = append(m.Edges, Edge{
		ID:       n.ParentID + "-" + n.ID,
		Source:   n.ParentID,
		Target:   n.ID,
		Animated: playing,
	})
}

// Find returns the element with the given id.
func (m Model) Find(id string) (Node, bool) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Questions returns only the question elements, in order.
func (m Model) Questions() []Node {
	var out []Node
	for _, n := range m.Nodes {
		if n.Kind == Question {
			out = append(out, n)
		}
	}
	return out
}

// Outline returns the question elements depth first, children in the order
// they appear in m. Dimmed and pending flags are carried over unchanged.
func (m Model) Outline() []Node {
	children := make(map[string][]Node)
	var roots []Node
	for _, n := range m.Nodes {
		if n.Kind != Question {
			continue
		}
		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		parent := treeIDOf(n.ParentID)
		children[parent] = append(children[parent], n)
	}

	out := make([]Node, 0, len(m.Nodes))
	seen := make(map[string]bool)
	var visit func(n Node)
	visit = func(n Node) {
		if seen[n.TreeID] {
			return
		}
		seen[n.TreeID] = true
		out = append(out, n)
		for _, c := range children[n.TreeID] {
			visit(c)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

// AnswerOf returns the answer text of a tree node, "" if it has none yet.
func (m Model) AnswerOf(treeID string) string {
	if n, ok := m.Find(AnswerID(treeID)); ok {
		return n.Text
	}
	return ""
}

func treeIDOf(elementID string) string {
	if len(elementID) > 2 && (elementID[:2] == "q-" || elementID[:2] == "a-") {
		return elementID[2:]
	}
	return elementID
}
