// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jeranaias/whytree/internal/qatree"
)

// DefaultKey is the persona used when none is configured.
const DefaultKey = "researcher"

var (
	// ErrUnknownPersona is returned by Get for an unregistered key.
	ErrUnknownPersona = errors.New("unknown persona")

	// ErrParentNotFound is returned when a non-root node's parent is missing.
	ErrParentNotFound = errors.New("parent node not found")
)

// =============================================================================
// STRATEGY INTERFACES
// =============================================================================

// Strategy builds prompts for one persona.
type Strategy interface {
	// Name is the display name.
	Name() string

	// Description is a one-line summary for pickers.
	Description() string

	// RandomQuestionPrompt asks the model for a seed question.
	RandomQuestionPrompt() string

	// AnswerPrompt builds the answer prompt. parent is nil for the root.
	AnswerPrompt(node qatree.Node, parent *qatree.Node) string
}

// QuestionsPrompter is implemented by personas that ask the model for
// follow-up questions.
type QuestionsPrompter interface {
	QuestionsPrompt(node qatree.Node) string
}

// FixedQuestioner is implemented by personas with canned follow-ups.
type FixedQuestioner interface {
	FixedQuestions(node qatree.Node) []qatree.ScoredQuestion
}

// NodeSource looks up nodes by id. Both *qatree.Tree and qatree.Snapshot
// satisfy it.
type NodeSource interface {
	Get(id string) (qatree.Node, bool)
}

// AnswerPromptFor resolves the parent of node and builds its answer prompt.
func AnswerPromptFor(s Strategy, node qatree.Node, src NodeSource) (string, error) {
	if node.IsRoot() {
		return s.AnswerPrompt(node, nil), nil
	}
	parent, ok := src.Get(node.ParentID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrParentNotFound, node.ParentID)
	}
	return s.AnswerPrompt(node, &parent), nil
}

// =============================================================================
// REGISTRY
// =============================================================================

var registry = map[string]Strategy{
	"researcher":         researcher{},
	"auto":               auto{},
	"hackernews":         hackerNews{},
	"toddler":            toddler{},
	"nihilistic-toddler": nihilisticToddler{},
}

// Get returns the persona registered under key.
func Get(key string) (Strategy, error) {
	s, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersona, key)
	}
	return s, nil
}

// Keys returns the registered persona keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default returns the default persona.
func Default() Strategy {
	return registry[DefaultKey]
}
