// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/storage"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("session closed")

// Config holds configuration for the session manager.
type Config struct {
	// AutoSaveInterval is how often a dirty session is saved (default: 30 seconds).
	// Zero or negative disables the autosave loop; Flush and Close still save.
	AutoSaveInterval time.Duration

	// FlushTimeout bounds the final save in Close (default: 5 seconds).
	FlushTimeout time.Duration

	// OnSave is called after every save attempt with its result.
	OnSave func(err error)

	Logger *slog.Logger
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		AutoSaveInterval: 30 * time.Second,
		FlushTimeout:     5 * time.Second,
	}
}

// Manager saves the tree behind one exploration session. Callers mark the
// session dirty on every tree change; the autosave loop persists dirty
// sessions at most once per interval.
type Manager struct {
	mu sync.Mutex

	sessionID string
	startTime time.Time
	store     storage.Store
	source    func() qatree.Snapshot

	autoSaveInterval time.Duration
	flushTimeout     time.Duration
	isDirty          bool
	lastSave         time.Time
	lastErr          error
	saves            int

	onSave func(error)
	logger *slog.Logger

	started   bool
	closed    bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager for a new session with a random id.
// source is called to obtain the snapshot to save.
func NewManager(store storage.Store, source func() qatree.Snapshot, cfg Config) *Manager {
	return NewManagerWithID(uuid.NewString(), store, source, cfg)
}

// NewManagerWithID creates a manager that saves under an existing id, used
// when a saved tree is reopened.
func NewManagerWithID(id string, store storage.Store, source func() qatree.Snapshot, cfg Config) *Manager {
	defaults := DefaultConfig()
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaults.FlushTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessionID:        id,
		startTime:        time.Now(),
		store:            store,
		source:           source,
		autoSaveInterval: cfg.AutoSaveInterval,
		flushTimeout:     cfg.FlushTimeout,
		onSave:           cfg.OnSave,
		logger:           logger.With("session", id),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionID returns the id the tree is saved under.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// MarkDirty indicates the tree has unsaved changes. Safe to call from any
// goroutine, including tree change callbacks.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDirty = true
}

// IsDirty returns whether the tree has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDirty
}

// =============================================================================
// SAVING
// =============================================================================

// Flush saves the tree now, dirty or not.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	// Cleared before the save so changes made during it re-dirty the session
	m.isDirty = false
	m.mu.Unlock()

	err := m.store.SaveSnapshot(ctx, m.source(), m.sessionID)

	m.mu.Lock()
	m.lastErr = err
	if err != nil {
		m.isDirty = true
	} else {
		m.lastSave = time.Now()
		m.saves++
	}
	onSave := m.onSave
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("session save failed", "error", err)
		err = fmt.Errorf("save session %s: %w", m.sessionID, err)
	} else {
		m.logger.Debug("session saved")
	}
	if onSave != nil {
		onSave(err)
	}
	return err
}

// saveIfDirty runs one autosave check.
func (m *Manager) saveIfDirty(ctx context.Context) {
	if !m.IsDirty() {
		return
	}
	_ = m.Flush(ctx)
}

// Start launches the autosave loop. It stops when ctx is done or Close is
// called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	go m.loop(ctx)
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	if m.autoSaveInterval <= 0 {
		select {
		case <-ctx.Done():
		case <-m.stop:
		}
		return
	}

	ticker := time.NewTicker(m.autoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.saveIfDirty(ctx)
		}
	}
}

// Close stops the autosave loop and saves any unsaved changes.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		started := m.started
		m.mu.Unlock()

		close(m.stop)
		if started {
			<-m.done
		}

		if m.IsDirty() {
			ctx, cancel := context.WithTimeout(context.Background(), m.flushTimeout)
			defer cancel()
			err = m.Flush(ctx)
		}
	})
	return err
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID string
	StartTime time.Time
	Duration  time.Duration
	IsDirty   bool
	LastSave  time.Time
	Saves     int
	LastError error
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		SessionID: m.sessionID,
		StartTime: m.startTime,
		Duration:  time.Since(m.startTime),
		IsDirty:   m.isDirty,
		LastSave:  m.lastSave,
		Saves:     m.saves,
		LastError: m.lastErr,
	}
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
