// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/expansion"
	"github.com/jeranaias/whytree/internal/persona"
	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/session"
	"github.com/jeranaias/whytree/internal/ui/explorer"
)

// exploreOptions are the flags of `whytree explore`.
type exploreOptions struct {
	persona     string
	model       string
	temperature float64
	concurrency int
	budget      int
	plain       bool
	paused      bool
	random      bool
}

func newExploreCommand(a *app) *cobra.Command {
	opts := &exploreOptions{}
	cmd := &cobra.Command{
		Use:   "explore [question]",
		Short: "Grow a question tree",
		Long: `Grow a question tree from a seed question.

On a terminal this opens the interactive view; otherwise each answer is
printed as it completes until the node budget is spent. With no question
you are prompted for one.`,
		Example: `  whytree explore "Why is the sky blue?"
  whytree explore --persona toddler --budget 20 --plain "Why do cats purr?"
  whytree explore --random`,
		Annotations: map[string]string{"logging": "deferred"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExplore(cmd, opts, strings.TrimSpace(strings.Join(args, " ")))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.persona, "persona", "p", "", "persona key (see `whytree personas`)")
	f.StringVarP(&opts.model, "model", "m", "", "model key or provider model id")
	f.Float64VarP(&opts.temperature, "temperature", "t", -1, "sampling temperature in [0, 1]")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "parallel expansion workers")
	f.IntVarP(&opts.budget, "budget", "n", 0, "answers to generate before pausing")
	f.BoolVar(&opts.plain, "plain", false, "print answers instead of opening the terminal view")
	f.BoolVar(&opts.paused, "paused", false, "open the terminal view paused")
	f.BoolVar(&opts.random, "random", false, "let the persona pick the seed question")
	return cmd
}

// applyFlags copies set flags over the generation config.
func (a *app) applyExploreFlags(cmd *cobra.Command, opts *exploreOptions) error {
	gen := &a.cfg.Generation
	flags := cmd.Flags()
	if flags.Changed("persona") {
		gen.Persona = opts.persona
	}
	if flags.Changed("model") {
		gen.Model = opts.model
	}
	if flags.Changed("temperature") {
		gen.Temperature = opts.temperature
	}
	if flags.Changed("concurrency") {
		if opts.concurrency < 1 {
			return usageError("--concurrency must be at least 1")
		}
		gen.Concurrency = opts.concurrency
	}
	if flags.Changed("budget") {
		if opts.budget < 1 {
			return usageError("--budget must be at least 1")
		}
		gen.NodeBudget = opts.budget
	}
	return nil
}

func (a *app) runExplore(cmd *cobra.Command, opts *exploreOptions, question string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := a.applyExploreFlags(cmd, opts); err != nil {
		return err
	}
	fullScreen := !opts.plain && isTerminalWriter(out) && IsTTY()
	if err := a.setupLogging(cmd.ErrOrStderr(), fullScreen); err != nil {
		return err
	}

	gen := a.cfg.Generation
	strategy, err := persona.Get(gen.Persona)
	if err != nil {
		return usageError("%v (known: %s)", err, strings.Join(persona.Keys(), ", "))
	}
	temp, err := completion.NewTemperature(gen.Temperature)
	if err != nil {
		return usageError("%v", err)
	}

	if question == "" && !opts.random {
		if !IsTTY() {
			return usageError("a question is required when stdin is not a terminal")
		}
		p := newQuestionPrompt()
		question, err = p.Ask("why? ")
		p.Close()
		if err != nil {
			return err
		}
	}

	tp, err := a.openTransport(ctx)
	if err != nil {
		return err
	}
	streamOpts := completion.Options{
		Model:        gen.Model,
		Temperature:  temp,
		APIKey:       a.cfg.Transport.APIKey,
		SessionToken: tp.sessionToken,
	}
	if opts.random {
		question, err = randomQuestion(ctx, tp.streamer, strategy, streamOpts)
		if err != nil {
			return commandError("explore", "pick a random question", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", question)
	}

	store, err := a.openStore()
	if err != nil {
		return commandError("explore", "open storage", err)
	}
	defer store.Close()

	tree, queue := expansion.Seed(question)

	var bridge *explorer.Bridge
	if fullScreen {
		bridge = explorer.NewBridge()
	}
	var printer *plainPrinter
	if !fullScreen {
		printer = newPlainPrinter(out, tree)
	}

	mgr := session.NewManager(store, tree.Snapshot, session.Config{
		AutoSaveInterval: a.cfg.Storage.AutosaveInterval(),
		FlushTimeout:     5 * time.Second,
		OnSave: func(err error) {
			if bridge != nil {
				bridge.Saved(err)
			}
		},
		Logger: a.logger,
	})

	pool, err := expansion.NewPool(gen.Concurrency, tree, queue, expansion.Config{
		Streamer:     tp.streamer,
		Persona:      strategy,
		Model:        streamOpts.Model,
		Temperature:  temp,
		APIKey:       streamOpts.APIKey,
		SessionToken: streamOpts.SessionToken,
		PollInterval: gen.PollInterval(),
		MaxAttempts:  gen.MaxAttempts,
		OnChange: func(s qatree.Snapshot) {
			mgr.MarkDirty()
			if bridge != nil {
				bridge.TreeChanged(s)
			}
		},
		OnNodeGenerated: func(id string) {
			if printer != nil {
				printer.Print(id)
			}
		},
		Logger: a.logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := mgr.Start(runCtx); err != nil {
		return err
	}

	a.logger.Info("exploring", "session", mgr.SessionID(), "persona", gen.Persona,
		"model", gen.Model, "workers", pool.Size(), "budget", gen.NodeBudget)

	if fullScreen {
		err = a.exploreFullScreen(runCtx, pool, bridge, opts.paused)
	} else {
		err = waitPlain(runCtx, pool, gen.NodeBudget)
	}

	pool.Destroy()
	cancel()
	pool.Wait()
	if cerr := mgr.Close(); cerr != nil && err == nil {
		err = commandError("explore", "save tree", cerr)
	}
	if err == nil || ctx.Err() != nil {
		st := mgr.GetStatus()
		fmt.Fprintf(cmd.ErrOrStderr(), "saved as %s (%d nodes in %s)\n", st.SessionID, tree.Len(), session.FormatDuration(st.Duration))
	}
	return err
}

func (a *app) exploreFullScreen(ctx context.Context, pool *expansion.Pool, bridge *explorer.Bridge, paused bool) error {
	pool.OnFullyPausedChange(bridge.PausedChanged)
	if !paused {
		pool.ResumeWithBudget(a.cfg.Generation.NodeBudget)
	}
	pool.Run(ctx)
	m := explorer.New(pool, explorer.Options{
		NodeBudget: a.cfg.Generation.NodeBudget,
		Theme:      a.theme(os.Stdout),
	})
	_, err := explorer.Run(ctx, m, bridge)
	return err
}

// idleChecks is how many consecutive idle polls end a plain run whose tree
// stopped growing.
const idleChecks = 3

// waitPlain plays budget answers and returns once the pool has parked, the
// tree has nothing left to expand, or ctx is done.
func waitPlain(ctx context.Context, pool *expansion.Pool, budget int) error {
	done := make(chan struct{})
	var once sync.Once
	pool.OnFullyPausedChange(func(fully bool) {
		if fully && !pool.Playing() {
			once.Do(func() { close(done) })
		}
	})
	// Resume before the workers start so none parks paused first.
	pool.ResumeWithBudget(budget)
	pool.Run(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	idle, lastLen := 0, -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-ticker.C:
			snap := pool.Snapshot()
			if pool.Queue().Len() == 0 && allSettled(snap) && len(snap) == lastLen {
				idle++
			} else {
				idle = 0
			}
			lastLen = len(snap)
			if idle >= idleChecks {
				pool.Pause()
			}
		}
	}
}

func allSettled(snap qatree.Snapshot) bool {
	for _, n := range snap {
		if !n.Settled() {
			return false
		}
	}
	return true
}

// randomQuestion asks the persona's model for a seed question.
func randomQuestion(ctx context.Context, s completion.Streamer, p persona.Strategy, opts completion.Options) (string, error) {
	var b strings.Builder
	err := s.Stream(ctx, p.RandomQuestionPrompt(), opts, func(chunk string) {
		b.WriteString(chunk)
	})
	if err != nil {
		return "", err
	}
	q := strings.Trim(strings.TrimSpace(b.String()), `"'`)
	if q == "" {
		return "", errNoQuestion
	}
	return q, nil
}

// =============================================================================
// PLAIN OUTPUT
// =============================================================================

// plainPrinter writes each completed answer under its question, indented
// by depth.
type plainPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	tree *qatree.Tree
}

func newPlainPrinter(w io.Writer, tree *qatree.Tree) *plainPrinter {
	return &plainPrinter{w: w, tree: tree}
}

// Print writes node id. Unknown ids are skipped.
func (p *plainPrinter) Print(id string) {
	n, ok := p.tree.Get(id)
	if !ok {
		return
	}
	depth := 0
	for cur := n.ParentID; cur != ""; {
		depth++
		parent, ok := p.tree.Get(cur)
		if !ok {
			break
		}
		cur = parent.ParentID
	}
	indent := strings.Repeat("  ", depth)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%sQ: %s\n", indent, strings.TrimSpace(n.Question))
	for _, line := range strings.Split(strings.TrimSpace(n.Answer), "\n") {
		fmt.Fprintf(p.w, "%s   %s\n", indent, line)
	}
	fmt.Fprintln(p.w)
}
