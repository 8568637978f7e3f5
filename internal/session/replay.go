// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// REPLAY
// =============================================================================

// Replay defaults.
const (
	DefaultChunkSize  = 12
	DefaultChunkDelay = 40 * time.Millisecond
)

// ReplayOptions controls how fast a saved tree is played back.
type ReplayOptions struct {
	// ChunkSize is the number of runes revealed per step (default: 12).
	ChunkSize int

	// ChunkDelay is the pause between steps (default: 40ms).
	ChunkDelay time.Duration
}

func (o ReplayOptions) withDefaults() ReplayOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkDelay <= 0 {
		o.ChunkDelay = DefaultChunkDelay
	}
	return o
}

// Replay plays a saved tree back into a fresh snapshot, breadth first from
// the root. Each node's answer is revealed ChunkSize runes at a time, then
// its children appear with their full questions. onChange receives a copy
// after every step. Node ids are preserved.
//
// On cancellation Replay returns the partial snapshot and ctx.Err().
func Replay(ctx context.Context, saved qatree.Snapshot, opts ReplayOptions, onChange func(qatree.Snapshot)) (qatree.Snapshot, error) {
	opts = opts.withDefaults()

	root, ok := saved.Root()
	if !ok {
		return qatree.Snapshot{}, nil
	}

	out := qatree.Snapshot{qatree.RootID: {Question: root.Question}}
	emit := func() {
		if onChange != nil {
			onChange(out.Clone())
		}
	}
	emit()

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.ChunkDelay):
			return nil
		}
	}

	seen := map[string]bool{qatree.RootID: true}
	queue := []string{qatree.RootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		src := saved[id]

		n := out[id]
		n.StartedProcessing = true
		if src.Failed {
			n.Failed = true
			n.Error = src.Error
		}
		out[id] = n
		emit()

		answer := []rune(src.Answer)
		for start := 0; start < len(answer); start += opts.ChunkSize {
			if err := wait(); err != nil {
				return out, err
			}
			end := min(start+opts.ChunkSize, len(answer))
			n.Answer += string(answer[start:end])
			out[id] = n
			emit()
		}

		var children []string
		for _, childID := range src.ChildIDs {
			if _, ok := saved[childID]; ok && !seen[childID] {
				seen[childID] = true
				children = append(children, childID)
			}
		}
		if len(children) == 0 {
			continue
		}
		if err := wait(); err != nil {
			return out, err
		}
		for _, childID := range children {
			out[childID] = qatree.Node{Question: saved[childID].Question, ParentID: id}
		}
		n.ChildIDs = children
		out[id] = n
		emit()
		queue = append(queue, children...)
	}
	return out, nil
}
