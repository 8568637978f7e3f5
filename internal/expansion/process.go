// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expansion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/whytree/internal/partialjson"
	"github.com/jeranaias/whytree/internal/persona"
	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// STATE
// =============================================================================

// State is the position of a process in its round.
type State int32

const (
	AwaitingWork State = iota
	GeneratingAnswer
	GeneratingQuestions
	Destroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case AwaitingWork:
		return "awaiting-work"
	case GeneratingAnswer:
		return "generating-answer"
	case GeneratingQuestions:
		return "generating-questions"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// errNodeGone reports that the node was deleted while it streamed.
var errNodeGone = errors.New("node deleted during generation")

// errEmptyAnswer reports a stream that ended cleanly without any text.
var errEmptyAnswer = errors.New("empty answer")

// =============================================================================
// PROCESS
// =============================================================================

// Process is one expansion worker. It starts paused.
type Process struct {
	id     int
	env    *env
	logger *slog.Logger

	state       atomic.Int32
	playing     atomic.Bool
	fullyPaused atomic.Bool
	destroyed   atomic.Bool
	ran         atomic.Bool

	mu                  sync.Mutex
	cancel              context.CancelFunc
	onFullyPausedChange func(bool)
}

// NewProcess creates a standalone process over tree and queue.
func NewProcess(tree *qatree.Tree, queue *WorkQueue, cfg Config) (*Process, error) {
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	return newProcess(0, newEnv(tree, queue, cfg), nil), nil
}

func newProcess(id int, e *env, onFullyPausedChange func(bool)) *Process {
	return &Process{
		id:                  id,
		env:                 e,
		logger:              e.cfg.Logger.With("process", id),
		onFullyPausedChange: onFullyPausedChange,
	}
}

// State returns the current state.
func (p *Process) State() State {
	return State(p.state.Load())
}

func (p *Process) setState(s State) {
	p.state.Store(int32(s))
}

// Playing returns true if the process has been resumed.
func (p *Process) Playing() bool {
	return p.playing.Load()
}

// FullyPaused returns true once a paused process is parked at AwaitingWork.
func (p *Process) FullyPaused() bool {
	return p.fullyPaused.Load()
}

// Resume lets the process take work.
func (p *Process) Resume() {
	p.playing.Store(true)
}

// Pause stops the process from taking new work. The current round, if
// any, runs to completion.
func (p *Process) Pause() {
	p.playing.Store(false)
}

// Destroy stops the process, aborts its in-flight stream and severs its
// callbacks.
func (p *Process) Destroy() {
	p.destroyed.Store(true)
	p.playing.Store(false)
	p.mu.Lock()
	cancel := p.cancel
	p.onFullyPausedChange = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Process) setFullyPaused(v bool) {
	if p.fullyPaused.Swap(v) == v {
		return
	}
	p.mu.Lock()
	fn := p.onFullyPausedChange
	p.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Run drives the process until ctx is cancelled or Destroy is called.
func (p *Process) Run(ctx context.Context) error {
	if !p.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRan
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	if p.destroyed.Load() {
		cancel()
	}

	ticker := time.NewTicker(p.env.cfg.PollInterval)
	defer ticker.Stop()

	wait := func() {
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	for {
		if p.destroyed.Load() || ctx.Err() != nil {
			p.setState(Destroyed)
			return nil
		}

		if !p.playing.Load() {
			p.setState(AwaitingWork)
			p.setFullyPaused(true)
			wait()
			continue
		}
		p.setFullyPaused(false)

		worked, err := p.RunRound(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("expansion round failed", "error", err)
		}
		if !worked {
			wait()
		}
	}
}

// =============================================================================
// ROUND
// =============================================================================

// RunRound performs one round: pop, answer, questions, enqueue. It returns
// false if the queue was empty. A node-local failure is logged and marked
// on the node; only cancellation is returned as an error.
func (p *Process) RunRound(ctx context.Context) (bool, error) {
	p.setState(AwaitingWork)
	id, ok := p.env.queue.Pop()
	if !ok {
		return false, nil
	}
	defer p.setState(AwaitingWork)

	tree := p.env.tree
	log := p.logger.With("node", id)
	log.Debug("popped from queue", "remaining", p.env.queue.Len())

	started, err := tree.MarkStarted(id)
	if err != nil {
		log.Warn("skipping node missing from tree")
		return true, nil
	}
	if !started {
		log.Debug("skipping node that already started")
		return true, nil
	}
	p.env.changed()

	p.setState(GeneratingAnswer)
	if err := p.generateAnswer(ctx, id); err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		if errors.Is(err, errNodeGone) {
			log.Info("node deleted while answering")
			return true, nil
		}
		log.Warn("answer generation failed", "error", err)
		if markErr := tree.MarkFailed(id, err); markErr == nil {
			p.env.changed()
		}
		return true, nil
	}
	p.env.nodeGenerated(id)

	p.setState(GeneratingQuestions)
	children := p.generateQuestions(ctx, id, log)
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	p.enqueue(children)
	return true, nil
}

// generateAnswer streams the node's answer, retrying attempts that failed
// before any chunk arrived.
func (p *Process) generateAnswer(ctx context.Context, id string) error {
	tree := p.env.tree
	node, ok := tree.Get(id)
	if !ok {
		return errNodeGone
	}
	prompt, err := persona.AnswerPromptFor(p.env.cfg.Persona, node, tree)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithCancel(ctx)
		delivered := false
		gone := false

		err := p.env.cfg.Streamer.Stream(actx, prompt, p.env.cfg.streamOptions(), func(chunk string) {
			if gone {
				return
			}
			delivered = true
			if _, err := tree.AppendAnswer(id, chunk); err != nil {
				gone = true
				cancel()
				return
			}
			p.env.changed()
		})
		cancel()

		if gone {
			return errNodeGone
		}
		if err == nil {
			n, ok := tree.Get(id)
			if !ok {
				return errNodeGone
			}
			if n.Answer != "" {
				return nil
			}
			// An empty answer is retried even when empty chunks arrived.
			err, delivered = errEmptyAnswer, false
		}

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case delivered || attempt >= p.env.cfg.MaxAttempts:
			return err
		}
		p.logger.Warn("retrying answer", "node", id, "attempt", attempt+1, "error", err)
	}
}

// generateQuestions produces the node's follow-ups and returns the child
// ids it created. Failures are logged; children created before a failure
// are kept.
func (p *Process) generateQuestions(ctx context.Context, id string, log *slog.Logger) []string {
	node, ok := p.env.tree.Get(id)
	if !ok {
		return nil
	}

	var ids []string
	switch s := p.env.cfg.Persona.(type) {
	case persona.FixedQuestioner:
		p.reconcile(id, &ids, s.FixedQuestions(node))

	case persona.QuestionsPrompter:
		var buf strings.Builder
		err := p.env.cfg.Streamer.Stream(ctx, s.QuestionsPrompt(node), p.env.cfg.streamOptions(), func(chunk string) {
			buf.WriteString(chunk)
			parsed, err := partialjson.ParseQuestions(buf.String())
			if err != nil {
				return
			}
			p.reconcile(id, &ids, parsed)
		})
		switch {
		case ctx.Err() != nil:
		case err != nil:
			log.Warn("question generation failed", "error", err, "children", len(ids))
		default:
			if _, perr := partialjson.ParseComplete(buf.String()); perr != nil {
				log.Warn("malformed questions JSON", "error", perr, "raw", buf.String(), "children", len(ids))
			}
		}

	default:
		log.Warn("persona cannot produce questions", "persona", p.env.cfg.Persona.Name())
	}
	return ids
}

// reconcile creates a child for every new slot in parsed and overwrites the
// question text of every slot seen so far.
func (p *Process) reconcile(parentID string, ids *[]string, parsed []qatree.ScoredQuestion) {
	tree := p.env.tree
	for len(*ids) < len(parsed) {
		childID, err := tree.AddChild(parentID)
		if err != nil {
			return
		}
		*ids = append(*ids, childID)
	}
	for i := 0; i < len(parsed) && i < len(*ids); i++ {
		// The user may have deleted the child already.
		_ = tree.SetQuestion((*ids)[i], parsed[i].Question)
	}
	p.env.changed()
}

// enqueue pushes children that are unstarted and inside the focus.
func (p *Process) enqueue(children []string) {
	tree := p.env.tree
	focus := p.env.focus()
	for _, id := range children {
		n, ok := tree.Get(id)
		if !ok || n.StartedProcessing {
			continue
		}
		if focus != "" && !qatree.IsAncestorOrDescendant(tree, focus, id) {
			continue
		}
		p.env.queue.Push(id)
	}
}
