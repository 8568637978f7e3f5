// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package explorer

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// MESSAGES
// =============================================================================

// TreeChangedMsg tells the model to re-read the controller.
type TreeChangedMsg struct{}

// SavedMsg reports an autosave result.
type SavedMsg struct {
	Err error
}

// =============================================================================
// BRIDGE
// =============================================================================

// DefaultRefreshInterval caps how often the tree is redrawn while streaming.
const DefaultRefreshInterval = 50 * time.Millisecond

// Bridge forwards pool and session callbacks to a running program. Its
// methods never block, so they are safe to call from stream callbacks.
// Change notifications are coalesced to one per refresh interval.
type Bridge struct {
	interval time.Duration
	kick     chan struct{}
	notes    chan tea.Msg
}

// NewBridge creates a bridge using DefaultRefreshInterval.
func NewBridge() *Bridge {
	return &Bridge{
		interval: DefaultRefreshInterval,
		kick:     make(chan struct{}, 1),
		notes:    make(chan tea.Msg, 16),
	}
}

// TreeChanged matches expansion.Config.OnChange.
func (b *Bridge) TreeChanged(qatree.Snapshot) {
	b.Changed()
}

// PausedChanged matches Pool.OnFullyPausedChange.
func (b *Bridge) PausedChanged(bool) {
	b.Changed()
}

// Changed schedules a redraw.
func (b *Bridge) Changed() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

// Saved matches session.Config.OnSave. Results are dropped when the
// program is not keeping up.
func (b *Bridge) Saved(err error) {
	select {
	case b.notes <- SavedMsg{Err: err}:
	default:
	}
}

// run forwards notifications to send until ctx is done.
func (b *Bridge) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.notes:
			send(msg)
		case <-b.kick:
			send(TreeChangedMsg{})
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.interval):
			}
		}
	}
}
