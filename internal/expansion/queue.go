// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expansion

import "sync"

// =============================================================================
// WORK QUEUE
// =============================================================================

// WorkQueue is a FIFO of node ids awaiting expansion. It is safe for
// concurrent use.
type WorkQueue struct {
	mu  sync.Mutex
	ids []string
}

// NewWorkQueue creates a queue holding ids in order.
func NewWorkQueue(ids ...string) *WorkQueue {
	return &WorkQueue{ids: append([]string(nil), ids...)}
}

// Push appends ids to the back of the queue.
func (q *WorkQueue) Push(ids ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, ids...)
}

// Pop removes and returns the front id.
func (q *WorkQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids[0] = ""
	q.ids = q.ids[1:]
	return id, true
}

// Len returns the number of queued ids.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Replace swaps the whole queue for ids.
func (q *WorkQueue) Replace(ids []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append([]string(nil), ids...)
}

// Remove drops every occurrence of the given ids and returns how many were
// removed.
func (q *WorkQueue) Remove(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.ids[:0]
	removed := 0
	for _, id := range q.ids {
		if drop[id] {
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.ids = kept
	return removed
}

// Snapshot returns a copy of the queued ids in order.
func (q *WorkQueue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}
