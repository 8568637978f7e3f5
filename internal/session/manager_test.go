// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

type failingStore struct {
	storage.Store
	mu    sync.Mutex
	calls int
}

func (f *failingStore) SaveSnapshot(ctx context.Context, tree qatree.Snapshot, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk full")
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.AutoSaveInterval)
	assert.Equal(t, 5*time.Second, cfg.FlushTimeout)
}

// =============================================================================
// MANAGER TESTS
// =============================================================================

func TestNewManager_AssignsUUID(t *testing.T) {
	tree := qatree.NewTree("Why?")
	m := NewManager(newTestStore(t), tree.Snapshot, DefaultConfig())

	_, err := uuid.Parse(m.SessionID())
	assert.NoError(t, err)
	assert.False(t, m.GetStatus().StartTime.IsZero())
	assert.False(t, m.IsDirty())
}

func TestManager_FlushSavesTree(t *testing.T) {
	store := newTestStore(t)
	tree := qatree.NewTree("Why is the sky blue?")
	m := NewManager(store, tree.Snapshot, DefaultConfig())

	m.MarkDirty()
	require.NoError(t, m.Flush(context.Background()))
	assert.False(t, m.IsDirty())

	saved, err := store.Load(context.Background(), m.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "Why is the sky blue?", saved.SeedQuery)

	status := m.GetStatus()
	assert.Equal(t, 1, status.Saves)
	assert.NoError(t, status.LastError)
	assert.False(t, status.LastSave.IsZero())
}

func TestManager_AutoSavesDirtySession(t *testing.T) {
	store := newTestStore(t)
	tree := qatree.NewTree("Why?")
	m := NewManager(store, tree.Snapshot, Config{AutoSaveInterval: 10 * time.Millisecond})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	_, err := tree.AppendAnswer(qatree.RootID, "Because.")
	require.NoError(t, err)
	m.MarkDirty()

	require.Eventually(t, func() bool {
		saved, err := store.Load(context.Background(), m.SessionID())
		return err == nil && saved.Tree[qatree.RootID].Answer == "Because."
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, m.IsDirty())
}

func TestManager_CleanSessionNotSaved(t *testing.T) {
	store := newTestStore(t)
	tree := qatree.NewTree("Why?")
	m := NewManager(store, tree.Snapshot, Config{AutoSaveInterval: 5 * time.Millisecond})
	require.NoError(t, m.Start(context.Background()))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Close())

	_, err := store.Load(context.Background(), m.SessionID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManager_CloseFlushesDirty(t *testing.T) {
	store := newTestStore(t)
	tree := qatree.NewTree("Why?")
	m := NewManager(store, tree.Snapshot, Config{AutoSaveInterval: time.Hour})
	require.NoError(t, m.Start(context.Background()))

	m.MarkDirty()
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := store.Load(context.Background(), m.SessionID())
	assert.NoError(t, err)
	assert.ErrorIs(t, m.Start(context.Background()), ErrClosed)
}

func TestManager_CloseWithoutStart(t *testing.T) {
	store := newTestStore(t)
	tree := qatree.NewTree("Why?")
	m := NewManager(store, tree.Snapshot, DefaultConfig())

	m.MarkDirty()
	require.NoError(t, m.Close())

	_, err := store.Load(context.Background(), m.SessionID())
	assert.NoError(t, err)
}

func TestManager_FailedSaveStaysDirty(t *testing.T) {
	store := &failingStore{}
	tree := qatree.NewTree("Why?")

	var reported []error
	m := NewManager(store, tree.Snapshot, Config{OnSave: func(err error) { reported = append(reported, err) }})

	m.MarkDirty()
	err := m.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, m.IsDirty())
	require.Len(t, reported, 1)
	assert.Error(t, reported[0])
	assert.Error(t, m.GetStatus().LastError)
}

func TestManager_ResumeKeepsID(t *testing.T) {
	store := newTestStore(t)
	tree := qatree.NewTree("Why?")
	m := NewManagerWithID("saved-123", store, tree.Snapshot, DefaultConfig())
	assert.Equal(t, "saved-123", m.SessionID())

	require.NoError(t, m.Flush(context.Background()))
	_, err := store.Load(context.Background(), "saved-123")
	assert.NoError(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d), "FormatDuration(%v)", tt.d)
	}
}
