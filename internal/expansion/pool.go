// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expansion

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// POOL
// =============================================================================

// Pool runs several processes against one tree and queue.
type Pool struct {
	env   *env
	procs []*Process

	mu                  sync.Mutex
	fullyPaused         bool
	onFullyPausedChange func(bool)

	// completed counts finished answers, seeded from the tree.
	completed atomic.Int64
	// budgetTarget is the completed count at which the pool pauses itself;
	// zero means unbounded.
	budgetTarget atomic.Int64

	wg        sync.WaitGroup
	destroyed atomic.Bool
}

// NewPool creates n processes sharing tree, queue and cfg. The pool starts
// paused; call Run and then Resume.
func NewPool(n int, tree *qatree.Tree, queue *WorkQueue, cfg Config) (*Pool, error) {
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultConcurrency
	}

	p := &Pool{}
	userHook := cfg.OnNodeGenerated
	cfg.OnNodeGenerated = func(id string) {
		p.noteGenerated()
		if userHook != nil {
			userHook(id)
		}
	}
	p.env = newEnv(tree, queue, cfg)
	p.completed.Store(int64(tree.CountAnswered()))

	for i := 0; i < n; i++ {
		p.procs = append(p.procs, newProcess(i, p.env, p.childPausedChanged))
	}
	return p, nil
}

// Tree returns the live tree.
func (p *Pool) Tree() *qatree.Tree {
	return p.env.tree
}

// Queue returns the shared work queue.
func (p *Pool) Queue() *WorkQueue {
	return p.env.queue
}

// Size returns the number of processes.
func (p *Pool) Size() int {
	return len(p.procs)
}

// OnFullyPausedChange registers a callback fired when FullyPaused flips.
func (p *Pool) OnFullyPausedChange(fn func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFullyPausedChange = fn
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Run starts every process in its own goroutine and returns immediately.
func (p *Pool) Run(ctx context.Context) {
	for _, proc := range p.procs {
		p.wg.Add(1)
		go func(proc *Process) {
			defer p.wg.Done()
			_ = proc.Run(ctx)
		}(proc)
	}
}

// Wait blocks until every process has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Resume lets every process take work without a budget.
func (p *Pool) Resume() {
	p.budgetTarget.Store(0)
	for _, proc := range p.procs {
		proc.Resume()
	}
}

// ResumeWithBudget resumes until n more answers have completed, then
// pauses the pool.
func (p *Pool) ResumeWithBudget(n int) {
	if n <= 0 {
		p.Resume()
		return
	}
	p.budgetTarget.Store(p.completed.Load() + int64(n))
	for _, proc := range p.procs {
		proc.Resume()
	}
}

// Pause asks every process to stop after its current round.
func (p *Pool) Pause() {
	for _, proc := range p.procs {
		proc.Pause()
	}
}

// Playing returns true if any process is resumed.
func (p *Pool) Playing() bool {
	for _, proc := range p.procs {
		if proc.Playing() {
			return true
		}
	}
	return false
}

// Destroy stops every process, aborts in-flight streams and severs the
// change callbacks.
func (p *Pool) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	p.env.sever()
	p.mu.Lock()
	p.onFullyPausedChange = nil
	p.mu.Unlock()
	for _, proc := range p.procs {
		proc.Destroy()
	}
}

// FullyPaused returns true once every process is parked.
func (p *Pool) FullyPaused() bool {
	for _, proc := range p.procs {
		if !proc.FullyPaused() {
			return false
		}
	}
	return true
}

func (p *Pool) childPausedChanged(bool) {
	p.mu.Lock()
	all := p.FullyPaused()
	if all == p.fullyPaused {
		p.mu.Unlock()
		return
	}
	p.fullyPaused = all
	fn := p.onFullyPausedChange
	p.mu.Unlock()
	if fn != nil {
		fn(all)
	}
}

// =============================================================================
// BUDGET
// =============================================================================

// Completed returns the number of answered nodes, including those present
// when the pool was created.
func (p *Pool) Completed() int {
	return int(p.completed.Load())
}

// Remaining returns the answers left in the current budget, or -1 when
// running unbounded.
func (p *Pool) Remaining() int {
	target := p.budgetTarget.Load()
	if target == 0 {
		return -1
	}
	left := target - p.completed.Load()
	if left < 0 {
		left = 0
	}
	return int(left)
}

func (p *Pool) noteGenerated() {
	done := p.completed.Add(1)
	target := p.budgetTarget.Load()
	if target > 0 && done >= target && p.budgetTarget.CompareAndSwap(target, 0) {
		p.env.cfg.Logger.Info("node budget reached, pausing", "completed", done)
		p.Pause()
	}
}

// =============================================================================
// FOCUS AND DELETION
// =============================================================================

// SetFocusedID sets the focus used when enqueuing new children. Queued and
// in-flight nodes are unaffected. An empty id clears the focus.
func (p *Pool) SetFocusedID(id string) {
	p.env.setFocus(id)
}

// FocusedID returns the current focus.
func (p *Pool) FocusedID() string {
	return p.env.focus()
}

// Refocus sets the focus and re-seeds the queue with the unstarted nodes
// on a root path through id.
func (p *Pool) Refocus(id string) []string {
	p.env.setFocus(id)
	ids := p.env.tree.UnansweredLeaves(id)
	p.env.queue.Replace(ids)
	p.env.cfg.Logger.Debug("refocused", "focus", id, "queued", len(ids))
	return ids
}

// DeleteBranch removes id and its descendants from the tree and the queue.
// A process already working on a removed node notices and skips it. Removing
// the focused node clears the focus and re-seeds the queue from the whole
// tree.
func (p *Pool) DeleteBranch(id string) []string {
	removed := p.env.tree.DeleteBranch(id)
	if len(removed) == 0 {
		return nil
	}
	p.env.queue.Remove(removed...)
	if focus := p.env.focus(); focus != "" && !p.env.tree.Has(focus) {
		p.Refocus("")
	}
	p.env.changed()
	return removed
}

// Snapshot returns a detached copy of the tree.
func (p *Pool) Snapshot() qatree.Snapshot {
	return p.env.tree.Snapshot()
}
