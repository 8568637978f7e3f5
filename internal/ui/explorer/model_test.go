// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package explorer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/ui/styles"
)

// fakeController records calls against a real tree.
type fakeController struct {
	tree        *qatree.Tree
	playing     bool
	fullyPaused bool
	focus       string
	budget      int
	completed   int
}

func newFake() *fakeController {
	return &fakeController{
		tree: qatree.FromSnapshot(qatree.Snapshot{
			"0": {Question: "Why is the sky blue?", Answer: "Rayleigh scattering.", ChildIDs: []string{"a", "b"}, StartedProcessing: true},
			"a": {Question: "What is scattering?", Answer: "Light bouncing off **particles**.", ParentID: "0", ChildIDs: []string{"a1"}, StartedProcessing: true},
			"b": {Question: "Why not violet?", ParentID: "0", StartedProcessing: true, Failed: true, Error: "boom"},
			"a1": {Question: "What particles?", ParentID: "a"},
		}),
		fullyPaused: true,
	}
}

func (f *fakeController) Snapshot() qatree.Snapshot { return f.tree.Snapshot() }
func (f *fakeController) Playing() bool { return f.playing }
func (f *fakeController) FullyPaused() bool { return f.fullyPaused }
func (f *fakeController) Resume() { f.playing, f.fullyPaused = true, false }
func (f *fakeController) ResumeWithBudget(n int) { f.budget = n; f.Resume() }

// Pause leaves fullyPaused false to mimic an in-flight call.
func (f *fakeController) Pause() { f.playing = false }
func (f *fakeController) FocusedID() string { return f.focus }
func (f *fakeController) Refocus(id string) []string {
	f.focus = id
	return f.tree.UnansweredLeaves(id)
}
func (f *fakeController) DeleteBranch(id string) []string { return f.tree.DeleteBranch(id) }
func (f *fakeController) Completed() int { return f.completed }
func (f *fakeController) Remaining() int { return 0 }

func newTestModel(t *testing.T, ctrl Controller) Model {
	t.Helper()
	theme := styles.NewTheme(styles.ThemeOptions{Mode: "dark", NoColor: true, Output: &bytes.Buffer{}})
	m := New(ctrl, Options{NodeBudget: 5, Theme: theme})
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Navigation(t *testing.T) {
	m := newTestModel(t, newFake())
	assert.Equal(t, "0", m.Selected())

	m = update(t, m, runes("j"))
	assert.Equal(t, "a", m.Selected())
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "a1", m.Selected())
	m = update(t, m, runes("G"))
	assert.Equal(t, "b", m.Selected())
	m = update(t, m, runes("j"))
	assert.Equal(t, "b", m.Selected(), "stays on last row")
	m = update(t, m, runes("k"))
	assert.Equal(t, "a1", m.Selected())
	m = update(t, m, runes("g"))
	assert.Equal(t, "0", m.Selected())
}

func TestModel_PauseResume(t *testing.T) {
	f := newFake()
	m := newTestModel(t, f)
	assert.Contains(t, m.View(), "paused")

	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.True(t, f.playing)
	assert.Contains(t, m.View(), "playing")

	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.False(t, f.playing)
	assert.Contains(t, m.View(), "pausing...")

	f.fullyPaused = true
	m = update(t, m, TreeChangedMsg{})
	assert.NotContains(t, m.View(), "pausing...")
	assert.Contains(t, m.View(), "paused")
}

func TestModel_Budget(t *testing.T) {
	f := newFake()
	m := newTestModel(t, f)
	m = update(t, m, runes("n"))
	assert.Equal(t, 5, f.budget)
	assert.True(t, f.playing)
	assert.Contains(t, m.Status(), "5")
}

func TestModel_FocusAndClear(t *testing.T) {
	f := newFake()
	m := newTestModel(t, f)

	m = update(t, m, runes("j"))
	m = update(t, m, runes("f"))
	assert.Equal(t, "a", f.focus)
	assert.Contains(t, m.View(), styles.StatusIndicators.Focus)

	m = update(t, m, runes("F"))
	assert.Equal(t, "", f.focus)
	assert.NotContains(t, m.View(), styles.StatusIndicators.Focus+" ")
}

func TestModel_DeleteBranch(t *testing.T) {
	f := newFake()
	m := newTestModel(t, f)

	m = update(t, m, runes("j"))
	m = update(t, m, runes("d"))
	_, ok := f.tree.Get("a")
	assert.False(t, ok)
	_, ok = f.tree.Get("a1")
	assert.False(t, ok)
	assert.Equal(t, "deleted 2 nodes", m.Status())
	assert.Equal(t, "b", m.Selected(), "selection moves to the next row")
	assert.NotContains(t, m.View(), "What is scattering?")
}

func TestModel_DeleteRootRefused(t *testing.T) {
	f := newFake()
	m := newTestModel(t, f)

	m = update(t, m, runes("d"))
	assert.Equal(t, 4, f.tree.Len())
	assert.Contains(t, m.Status(), "cannot be deleted")
}

func TestModel_SelectionSurvivesRefresh(t *testing.T) {
	f := newFake()
	m := newTestModel(t, f)
	m = update(t, m, runes("G"))
	require.Equal(t, "b", m.Selected())

	id, err := f.tree.AddChild("0")
	require.NoError(t, err)
	require.NoError(t, f.tree.SetQuestion(id, "Why does it turn red at sunset?"))

	m = update(t, m, TreeChangedMsg{})
	assert.Equal(t, "b", m.Selected())
	assert.Contains(t, m.View(), "sunset")
}

func TestModel_AnswerPane(t *testing.T) {
	m := newTestModel(t, newFake())
	assert.Contains(t, m.View(), "Rayleigh scattering.")

	m = update(t, m, runes("G"))
	assert.Contains(t, m.View(), "generation failed: boom")

	m = update(t, m, runes("k"))
	assert.Contains(t, m.View(), "(no answer yet)")
}

func TestModel_View(t *testing.T) {
	m := newTestModel(t, newFake())
	v := m.View()
	assert.Contains(t, v, "whytree")
	assert.Contains(t, v, "Why is the sky blue?")
	assert.Contains(t, v, "    "+styles.StatusIndicators.Pending+" What particles?")
	assert.Contains(t, v, styles.StatusIndicators.Failed+" Why not violet?")
}

func TestModel_SavedError(t *testing.T) {
	m := newTestModel(t, newFake())
	m = update(t, m, SavedMsg{Err: errors.New("disk full")})
	assert.Contains(t, m.Status(), "disk full")
	m = update(t, m, SavedMsg{})
	assert.Contains(t, m.Status(), "disk full")
}

func TestModel_Quit(t *testing.T) {
	f := newFake()
	f.playing = true
	m := newTestModel(t, f)

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, f.playing)
	assert.Empty(t, next.View())
}

func TestModel_HelpToggle(t *testing.T) {
	m := newTestModel(t, newFake())
	short := m.View()
	m = update(t, m, runes("?"))
	assert.Contains(t, m.View(), "clear focus")
	assert.NotContains(t, short, "clear focus")
}

func TestBridge_Coalesces(t *testing.T) {
	b := NewBridge()
	b.interval = 20 * time.Millisecond

	var mu sync.Mutex
	var got []tea.Msg
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.run(ctx, func(msg tea.Msg) {
			mu.Lock()
			got = append(got, msg)
			mu.Unlock()
		})
		close(done)
	}()

	for i := 0; i < 50; i++ {
		b.TreeChanged(nil)
	}
	b.Saved(errors.New("x"))
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	var changes, saves int
	for _, msg := range got {
		switch msg.(type) {
		case TreeChangedMsg:
			changes++
		case SavedMsg:
			saves++
		}
	}
	assert.GreaterOrEqual(t, changes, 1)
	assert.LessOrEqual(t, changes, 2)
	assert.Equal(t, 1, saves)
}

func TestBridge_NeverBlocks(t *testing.T) {
	b := NewBridge()
	for i := 0; i < 100; i++ {
		b.Changed()
		b.Saved(nil)
	}
}
