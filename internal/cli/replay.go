// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/export"
	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/relay"
	"github.com/jeranaias/whytree/internal/session"
	"github.com/jeranaias/whytree/internal/storage"
	"github.com/jeranaias/whytree/internal/ui/explorer"
)

type replayOptions struct {
	example    bool
	plain      bool
	chunkSize  int
	chunkDelay time.Duration
}

func newReplayCommand(a *app) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <id>",
		Short: "Play back a saved tree",
		Long: `Play back a saved tree answer by answer in the terminal view.

With --example the tree is fetched from the configured relay instead of
local storage. Without a terminal the finished tree is printed as Markdown.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"logging": "deferred"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReplay(cmd, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.example, "example", false, "fetch the tree from the relay's examples")
	f.BoolVar(&opts.plain, "plain", false, "print the tree instead of animating it")
	f.IntVar(&opts.chunkSize, "chunk-size", session.DefaultChunkSize, "runes revealed per step")
	f.DurationVar(&opts.chunkDelay, "chunk-delay", session.DefaultChunkDelay, "delay between steps")
	return cmd
}

func (a *app) runReplay(cmd *cobra.Command, opts *replayOptions, id string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fullScreen := !opts.plain && isTerminalWriter(out) && IsTTY()
	if err := a.setupLogging(cmd.ErrOrStderr(), fullScreen); err != nil {
		return err
	}

	saved, err := a.loadReplaySource(ctx, id, opts.example)
	if err != nil {
		return commandError("replay", id, err)
	}

	if !fullScreen {
		md := export.Markdown(saved.Tree)
		_, err := fmt.Fprint(out, md)
		return err
	}

	bridge := explorer.NewBridge()
	ctrl := newReplayController()
	replayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctrl.cancel = cancel

	go func() {
		final, err := session.Replay(replayCtx, saved.Tree, session.ReplayOptions{
			ChunkSize:  opts.chunkSize,
			ChunkDelay: opts.chunkDelay,
		}, func(s qatree.Snapshot) {
			ctrl.set(s)
			bridge.Changed()
		})
		if err != nil && replayCtx.Err() == nil {
			a.logger.Warn("replay failed", "tree", id, "error", err)
		}
		ctrl.finish(final)
		bridge.Changed()
	}()

	m := explorer.New(ctrl, explorer.Options{Theme: a.theme(os.Stdout)})
	_, err = explorer.Run(ctx, m, bridge)
	return err
}

// loadReplaySource reads a tree from local storage or the relay.
func (a *app) loadReplaySource(ctx context.Context, id string, fromRelay bool) (*storage.SavedTree, error) {
	if fromRelay {
		if a.cfg.Transport.RelayURL == "" {
			return nil, usageError("--example needs transport.relay_url")
		}
		client := relay.NewClient(a.cfg.Transport.RelayURL).WithHTTPClient(&http.Client{Timeout: a.cfg.Transport.Timeout()})
		return client.Example(ctx, id)
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Load(ctx, id)
}

// =============================================================================
// REPLAY CONTROLLER
// =============================================================================

// replayController drives the explorer from a replay. Focus is honoured;
// deletion and budgets are not.
type replayController struct {
	mu      sync.Mutex
	snap    qatree.Snapshot
	running bool
	focus   string
	cancel  context.CancelFunc
}

func newReplayController() *replayController {
	return &replayController{snap: qatree.Snapshot{}, running: true}
}

func (c *replayController) set(s qatree.Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

func (c *replayController) finish(s qatree.Snapshot) {
	c.mu.Lock()
	if s != nil {
		c.snap = s
	}
	c.running = false
	c.mu.Unlock()
}

func (c *replayController) Snapshot() qatree.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *replayController) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *replayController) FullyPaused() bool { return !c.Playing() }
func (c *replayController) Resume() {}
func (c *replayController) ResumeWithBudget(int) {}

// Pause skips the rest of the playback.
func (c *replayController) Pause() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *replayController) FocusedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus
}

func (c *replayController) Refocus(id string) []string {
	c.mu.Lock()
	c.focus = id
	c.mu.Unlock()
	return nil
}

func (c *replayController) DeleteBranch(string) []string { return nil }

func (c *replayController) Completed() int {
	n := 0
	for _, node := range c.Snapshot() {
		if node.Settled() {
			n++
		}
	}
	return n
}

func (c *replayController) Remaining() int { return -1 }
