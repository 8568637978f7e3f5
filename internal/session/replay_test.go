// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/whytree/internal/qatree"
)

func savedExample() qatree.Snapshot {
	return qatree.Snapshot{
		"0":  {Question: "Why is the sky blue?", Answer: "Rayleigh scattering of sunlight.", ChildIDs: []string{"a", "b"}, StartedProcessing: true},
		"a":  {Question: "What is Rayleigh scattering?", Answer: "Scattering by small particles.", ParentID: "0", ChildIDs: []string{"a1"}, StartedProcessing: true},
		"b":  {Question: "Why not violet?", Answer: "Eyes are less sensitive.", ParentID: "0", StartedProcessing: true},
		"a1": {Question: "How small?", ParentID: "a"},
	}
}

func fastReplay() ReplayOptions {
	return ReplayOptions{ChunkSize: 5, ChunkDelay: time.Millisecond}
}

func TestReplay_RebuildsTree(t *testing.T) {
	saved := savedExample()

	got, err := Replay(context.Background(), saved, fastReplay(), nil)
	require.NoError(t, err)
	require.Len(t, got, len(saved))

	for id, want := range saved {
		n := got[id]
		assert.Equal(t, want.Question, n.Question, id)
		assert.Equal(t, want.Answer, n.Answer, id)
		assert.Equal(t, want.ParentID, n.ParentID, id)
		assert.Equal(t, want.ChildIDs, n.ChildIDs, id)
		assert.True(t, n.StartedProcessing, id)
	}
}

func TestReplay_RevealsIncrementallyBreadthFirst(t *testing.T) {
	saved := savedExample()

	var steps []qatree.Snapshot
	_, err := Replay(context.Background(), saved, fastReplay(), func(s qatree.Snapshot) {
		steps = append(steps, s)
	})
	require.NoError(t, err)
	require.NotEmpty(t, steps)

	first := steps[0]
	require.Len(t, first, 1)
	assert.Equal(t, "", first[qatree.RootID].Answer)

	prev := map[string]string{}
	for _, step := range steps {
		for id, n := range step {
			assert.True(t, strings.HasPrefix(saved[id].Answer, n.Answer), "answer of %s must be a prefix", id)
			assert.True(t, strings.HasPrefix(n.Answer, prev[id]), "answer of %s must only grow", id)
			prev[id] = n.Answer

			// Children appear only once the parent answer is complete
			if n.ParentID != "" {
				assert.Equal(t, saved[n.ParentID].Answer, step[n.ParentID].Answer)
			}
			// Breadth first: a grandchild never starts before its uncle is done
			if id == "a1" && n.StartedProcessing {
				assert.Equal(t, saved["b"].Answer, step["b"].Answer)
			}
		}
	}
}

func TestReplay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	steps := 0
	got, err := Replay(ctx, savedExample(), fastReplay(), func(qatree.Snapshot) {
		steps++
		if steps == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(got[qatree.RootID].Answer), len(savedExample()[qatree.RootID].Answer))
	_, hasChild := got["a"]
	assert.False(t, hasChild)
}

func TestReplay_EmptyAndBrokenTrees(t *testing.T) {
	got, err := Replay(context.Background(), qatree.Snapshot{}, fastReplay(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Dangling child ids and cycles are skipped
	broken := qatree.Snapshot{
		"0": {Question: "Why?", Answer: "x", ChildIDs: []string{"ghost", "c"}},
		"c": {Question: "Loop?", ParentID: "0", ChildIDs: []string{"0"}},
	}
	got, err = Replay(context.Background(), broken, fastReplay(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"c"}, got["0"].ChildIDs)
}

func TestReplay_CopiesFailure(t *testing.T) {
	saved := qatree.Snapshot{
		"0": {Question: "Why?", Failed: true, Error: "provider unavailable", StartedProcessing: true},
	}
	got, err := Replay(context.Background(), saved, fastReplay(), nil)
	require.NoError(t, err)
	assert.True(t, got["0"].Failed)
	assert.Equal(t, "provider unavailable", got["0"].Error)
}
