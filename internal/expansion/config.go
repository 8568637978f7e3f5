// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expansion

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/persona"
	"github.com/jeranaias/whytree/internal/qatree"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultPollInterval is how often an idle process checks the queue.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultMaxAttempts bounds answer attempts per node.
	DefaultMaxAttempts = 2

	// DefaultConcurrency is the number of processes in a pool.
	DefaultConcurrency = 2
)

var (
	// ErrNoStreamer is returned when Config.Streamer is nil.
	ErrNoStreamer = errors.New("expansion: streamer is required")

	// ErrAlreadyRan is returned when a process is run twice.
	ErrAlreadyRan = errors.New("expansion: process already ran")
)

// =============================================================================
// CONFIG
// =============================================================================

// Config is shared by every process of a pool.
type Config struct {
	Streamer completion.Streamer
	Persona  persona.Strategy

	Model        string
	Temperature  completion.Temperature
	APIKey       string
	SessionToken string

	PollInterval time.Duration
	MaxAttempts  int

	// OnChange receives a detached snapshot after every tree mutation.
	OnChange func(qatree.Snapshot)

	// OnNodeGenerated is called once a node's answer is complete.
	OnNodeGenerated func(id string)

	Logger *slog.Logger
}

func (c *Config) fillDefaults() error {
	if c.Streamer == nil {
		return ErrNoStreamer
	}
	if err := c.Temperature.Validate(); err != nil {
		return err
	}
	if c.Persona == nil {
		c.Persona = persona.Default()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

func (c *Config) streamOptions() completion.Options {
	return completion.Options{
		Model:        c.Model,
		Temperature:  c.Temperature,
		APIKey:       c.APIKey,
		SessionToken: c.SessionToken,
	}
}

// =============================================================================
// SHARED ENVIRONMENT
// =============================================================================

// env is the state every process of a pool shares.
type env struct {
	tree  *qatree.Tree
	queue *WorkQueue
	cfg   Config

	mu              sync.RWMutex
	focusedID       string
	onChange        func(qatree.Snapshot)
	onNodeGenerated func(string)
}

func newEnv(tree *qatree.Tree, queue *WorkQueue, cfg Config) *env {
	return &env{
		tree:            tree,
		queue:           queue,
		cfg:             cfg,
		onChange:        cfg.OnChange,
		onNodeGenerated: cfg.OnNodeGenerated,
	}
}

func (e *env) focus() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.focusedID
}

func (e *env) setFocus(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focusedID = id
}

// changed publishes a fresh snapshot.
func (e *env) changed() {
	e.mu.RLock()
	fn := e.onChange
	e.mu.RUnlock()
	if fn != nil {
		fn(e.tree.Snapshot())
	}
}

func (e *env) nodeGenerated(id string) {
	e.mu.RLock()
	fn := e.onNodeGenerated
	e.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

// sever drops the callbacks so late stream chunks cannot reach a disposed
// consumer.
func (e *env) sever() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = nil
	e.onNodeGenerated = nil
}

// Seed creates a tree for question and a queue holding its root.
func Seed(question string) (*qatree.Tree, *WorkQueue) {
	return qatree.NewTree(question), NewWorkQueue(qatree.RootID)
}
