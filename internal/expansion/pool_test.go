// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expansion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/whytree/internal/completion/completiontest"
	"github.com/jeranaias/whytree/internal/qatree"
)

const (
	eventually = 5 * time.Second
	tick       = 5 * time.Millisecond
)

// branchingStub answers every node and gives the first maxParents nodes two
// uniquely named children each.
func branchingStub(maxParents int32) *completiontest.Stub {
	var parents, names atomic.Int32
	stub := completiontest.New()
	stub.Respond = func(prompt string) completiontest.Response {
		if !strings.Contains(prompt, "JSON array") {
			return completiontest.Chunks("because ", "reasons")
		}
		if parents.Add(1) > maxParents {
			return completiontest.Chunks("[]")
		}
		a, b := names.Add(1), names.Add(1)
		return completiontest.Chunks(fmt.Sprintf(`[{"question": "q%d", "score": 5}, `, a), fmt.Sprintf(`{"question": "q%d", "score": 4}]`, b))
	}
	return stub
}

func newTestPool(t *testing.T, n int, tree *qatree.Tree, queue *WorkQueue, stub *completiontest.Stub, mutate ...func(*Config)) *Pool {
	t.Helper()
	cfg := Config{
		Streamer:     stub,
		Persona:      mustPersona(t, "researcher"),
		Temperature:  1,
		PollInterval: 5 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	pool, err := NewPool(n, tree, queue, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Destroy()
		pool.Wait()
	})
	return pool
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

// TestPool_EachNodeAnsweredOnce drains a growing tree with several
// processes and checks that every node was generated exactly once.
func TestPool_EachNodeAnsweredOnce(t *testing.T) {
	tree, queue := Seed("Why?")

	var mu sync.Mutex
	generated := make(map[string]int)
	pool := newTestPool(t, 4, tree, queue, branchingStub(15), func(c *Config) {
		c.OnNodeGenerated = func(id string) {
			mu.Lock()
			generated[id]++
			mu.Unlock()
		}
	})

	pool.Run(context.Background())
	pool.Resume()

	// 1 root + 15 parents * 2 children.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(generated) == 31 && queue.Len() == 0
	}, eventually, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, generated, 31)
	for id, n := range generated {
		assert.Equal(t, 1, n, "node %s generated %d times", id, n)
	}
	assert.Equal(t, 31, pool.Completed())
}

// =============================================================================
// PAUSE TESTS
// =============================================================================

func TestPool_FullyPausedAggregation(t *testing.T) {
	tree, queue := Seed("Why?")
	stub := completiontest.New()
	stub.Respond = func(string) completiontest.Response {
		return completiontest.Response{Chunks: []string{"slow"}, Delay: 20 * time.Millisecond}
	}

	var mu sync.Mutex
	var transitions []bool
	pool := newTestPool(t, 3, tree, queue, stub)
	pool.OnFullyPausedChange(func(v bool) {
		mu.Lock()
		transitions = append(transitions, v)
		mu.Unlock()
	})

	pool.Run(context.Background())
	require.Eventually(t, pool.FullyPaused, eventually, tick, "pool starts paused")

	pool.Resume()
	require.Eventually(t, func() bool { return !pool.FullyPaused() }, eventually, tick)
	assert.True(t, pool.Playing())

	pool.Pause()
	assert.False(t, pool.Playing())
	require.Eventually(t, pool.FullyPaused, eventually, tick)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(transitions), 3)
	assert.Equal(t, []bool{true, false, true}, transitions[:3])
	for i := 1; i < len(transitions); i++ {
		assert.NotEqual(t, transitions[i-1], transitions[i], "only transitions are reported")
	}
}

// TestPool_PauseWaitsForRound checks that a process mid-round is paused but
// not fully paused until the round ends.
func TestPool_PauseWaitsForRound(t *testing.T) {
	tree, queue := Seed("Why?")
	release := make(chan struct{})
	stub := completiontest.New()
	stub.Respond = func(string) completiontest.Response {
		<-release
		return completiontest.Chunks("done")
	}

	pool := newTestPool(t, 1, tree, queue, stub)
	pool.Run(context.Background())
	pool.Resume()

	proc := pool.procs[0]
	require.Eventually(t, func() bool { return proc.State() == GeneratingAnswer }, eventually, tick)

	pool.Pause()
	time.Sleep(30 * time.Millisecond)
	assert.False(t, pool.FullyPaused(), "still generating")

	close(release)
	require.Eventually(t, pool.FullyPaused, eventually, tick)
	root, _ := tree.Get(qatree.RootID)
	assert.Equal(t, "done", root.Answer)
}

// =============================================================================
// BUDGET TESTS
// =============================================================================

func TestPool_ResumeWithBudget(t *testing.T) {
	tree, queue := Seed("Why is grass green?")
	stub := completiontest.New()
	stub.Respond = func(string) completiontest.Response { return completiontest.Chunks("because") }

	pool := newTestPool(t, 1, tree, queue, stub, func(c *Config) {
		c.Persona = mustPersona(t, "toddler")
	})
	pool.Run(context.Background())

	pool.ResumeWithBudget(3)
	assert.LessOrEqual(t, pool.Remaining(), 3)
	require.Eventually(t, func() bool { return !pool.Playing() && pool.FullyPaused() }, eventually, tick)
	assert.Equal(t, 3, pool.Completed())
	assert.Equal(t, 3, tree.CountAnswered())
	assert.Equal(t, -1, pool.Remaining())

	pool.ResumeWithBudget(2)
	require.Eventually(t, func() bool { return !pool.Playing() && pool.FullyPaused() }, eventually, tick)
	assert.Equal(t, 5, pool.Completed())
}

func TestPool_CompletedSeededFromTree(t *testing.T) {
	tree := qatree.FromSnapshot(qatree.Snapshot{
		"0": {Question: "q", Answer: "a", StartedProcessing: true},
	})
	pool := newTestPool(t, 1, tree, NewWorkQueue(), completiontest.New())
	assert.Equal(t, 1, pool.Completed())
}

// =============================================================================
// FOCUS AND DELETION TESTS
// =============================================================================

// TestPool_Refocus re-seeds the queue with unstarted nodes in the focused
// branch.
func TestPool_Refocus(t *testing.T) {
	tree := qatree.FromSnapshot(qatree.Snapshot{
		"0":  {Question: "root", Answer: "r", ChildIDs: []string{"a", "b"}, StartedProcessing: true},
		"a":  {Question: "qa", Answer: "x", ParentID: "0", ChildIDs: []string{"a1"}, StartedProcessing: true},
		"b":  {Question: "qb", ParentID: "0"},
		"a1": {Question: "qa1", ParentID: "a"},
	})
	queue := NewWorkQueue("b", "a1")
	pool := newTestPool(t, 1, tree, queue, completiontest.New())

	assert.Equal(t, []string{"a1"}, pool.Refocus("a"))
	assert.Equal(t, []string{"a1"}, queue.Snapshot())
	assert.Equal(t, "a", pool.FocusedID())

	pool.Refocus("")
	assert.Equal(t, []string{"b", "a1"}, queue.Snapshot())
}

func TestPool_SetFocusedIDLeavesQueue(t *testing.T) {
	tree, queue := Seed("q")
	queue.Push("x", "y")
	pool := newTestPool(t, 1, tree, queue, completiontest.New())

	pool.SetFocusedID("x")
	assert.Equal(t, []string{"0", "x", "y"}, queue.Snapshot())
}

func TestPool_DeleteBranch(t *testing.T) {
	tree := qatree.FromSnapshot(qatree.Snapshot{
		"0":  {Question: "root", Answer: "r", ChildIDs: []string{"a", "b"}, StartedProcessing: true},
		"a":  {Question: "qa", ParentID: "0", ChildIDs: []string{"a1"}},
		"a1": {Question: "qa1", ParentID: "a"},
		"b":  {Question: "qb", ParentID: "0"},
	})
	queue := NewWorkQueue("a", "b", "a1")

	var snaps atomic.Int32
	pool := newTestPool(t, 1, tree, queue, completiontest.New(), func(c *Config) {
		c.OnChange = func(qatree.Snapshot) { snaps.Add(1) }
	})
	pool.SetFocusedID("a1")

	removed := pool.DeleteBranch("a")
	assert.ElementsMatch(t, []string{"a", "a1"}, removed)
	assert.Equal(t, []string{"b"}, queue.Snapshot())
	assert.Empty(t, pool.FocusedID(), "focus on a deleted node is cleared")
	assert.Equal(t, int32(1), snaps.Load())

	assert.Nil(t, pool.DeleteBranch("a"))
}

// TestPool_DeleteFocusedBranchRequeues puts nodes the old focus held back
// into the queue once the focused branch is deleted.
func TestPool_DeleteFocusedBranchRequeues(t *testing.T) {
	tree := qatree.FromSnapshot(qatree.Snapshot{
		"0": {Question: "root", Answer: "r", ChildIDs: []string{"a", "b"}, StartedProcessing: true},
		"a": {Question: "qa", ParentID: "0"},
		"b": {Question: "qb", ParentID: "0"},
	})
	queue := NewWorkQueue("a", "b")
	pool := newTestPool(t, 1, tree, queue, completiontest.New())

	assert.Equal(t, []string{"a"}, pool.Refocus("a"))

	pool.DeleteBranch("a")
	assert.Empty(t, pool.FocusedID())
	assert.Equal(t, []string{"b"}, queue.Snapshot())
}

// =============================================================================
// DESTROY TESTS
// =============================================================================

func TestPool_DestroySeversCallbacks(t *testing.T) {
	tree, queue := Seed("Why?")
	started := make(chan struct{})
	var once sync.Once
	stub := completiontest.New()
	stub.Respond = func(string) completiontest.Response {
		once.Do(func() { close(started) })
		return completiontest.Response{Chunks: []string{"a", "b", "c"}, Delay: 50 * time.Millisecond}
	}

	var changes atomic.Int32
	pool := newTestPool(t, 2, tree, queue, stub, func(c *Config) {
		c.OnChange = func(qatree.Snapshot) { changes.Add(1) }
	})
	pool.Run(context.Background())
	pool.Resume()

	<-started
	pool.Destroy()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(eventually):
		t.Fatal("processes did not exit after Destroy")
	}

	after := changes.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, changes.Load(), "no callbacks after Destroy")
	root, _ := tree.Get(qatree.RootID)
	assert.NotEqual(t, "abc", root.Answer, "in-flight stream was aborted")
	for _, proc := range pool.procs {
		assert.Equal(t, Destroyed, proc.State())
	}
}

func TestProcess_RunTwice(t *testing.T) {
	tree, queue := Seed("q")
	proc := newTestProcess(t, tree, queue, completiontest.New(), func(c *Config) {
		c.PollInterval = time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()
	require.Eventually(t, proc.FullyPaused, eventually, tick)

	assert.ErrorIs(t, proc.Run(ctx), ErrAlreadyRan)
	cancel()
	assert.NoError(t, <-done)
}
