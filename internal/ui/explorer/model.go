// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package explorer

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/ui/styles"
	"github.com/jeranaias/whytree/internal/view"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the expansion surface the explorer drives.
// *expansion.Pool satisfies it.
type Controller interface {
	Snapshot() qatree.Snapshot
	Playing() bool
	FullyPaused() bool
	Resume()
	ResumeWithBudget(n int)
	Pause()
	FocusedID() string
	Refocus(id string) []string
	DeleteBranch(id string) []string
	Completed() int
	Remaining() int
}

// Options configures a Model.
type Options struct {
	// NodeBudget is how many answers the budget key plays before pausing.
	NodeBudget int

	Theme *styles.Theme
	Keys  *KeyMap
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the explorer.
type Model struct {
	ctrl   Controller
	theme  *styles.Theme
	keys   KeyMap
	budget int

	spin     spinner.Model
	answer   viewport.Model
	help     help.Model
	markdown *glamour.TermRenderer

	// Last read from the controller
	snap        qatree.Snapshot
	rows        []view.Node
	playing     bool
	fullyPaused bool
	focus       string
	completed   int
	remaining   int

	cursor   int
	offset   int
	selected string

	// Render cache for the answer pane
	renderedFor string
	renderedSrc string

	status    string
	statusErr bool
	width     int
	height    int
	ready     bool
	quitting  bool
}

// New creates an explorer over ctrl.
func New(ctrl Controller, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeOptions{})
	}
	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	budget := opts.NodeBudget
	if budget <= 0 {
		budget = 10
	}

	sp := spinner.New(
		spinner.WithSpinner(styles.DotsSpinner.Bubbles()),
		spinner.WithStyle(theme.Pending),
	)

	vp := viewport.New(0, 0)
	vp.KeyMap = answerKeys()

	h := help.New()
	h.Styles.ShortKey = theme.Help
	h.Styles.ShortDesc = theme.Muted
	h.Styles.FullKey = theme.Help
	h.Styles.FullDesc = theme.Muted

	m := Model{
		ctrl:     ctrl,
		theme:    theme,
		keys:     keys,
		budget:   budget,
		spin:     sp,
		answer:   vp,
		help:     h,
		selected: qatree.RootID,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Selected returns the tree id under the cursor.
func (m Model) Selected() string {
	return m.selected
}

// Status returns the transient status line.
func (m Model) Status() string {
	return m.status
}

// refresh re-reads the controller and keeps the selection on the same node
// where it still exists.
func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	m.playing = m.ctrl.Playing()
	m.fullyPaused = m.ctrl.FullyPaused()
	m.focus = m.ctrl.FocusedID()
	m.completed = m.ctrl.Completed()
	m.remaining = m.ctrl.Remaining()
	m.rows = view.Project(m.snap, m.focus, m.playing).Outline()

	m.cursor = m.indexOf(m.selected, m.cursor)
	if len(m.rows) > 0 {
		m.selected = m.rows[m.cursor].TreeID
	} else {
		m.selected = ""
	}
	m.scrollToCursor(m.treeHeight())
	m.renderAnswer()
}

// indexOf finds id in rows, falling back to fallback clamped to range.
func (m *Model) indexOf(id string, fallback int) int {
	for i, r := range m.rows {
		if r.TreeID == id {
			return i
		}
	}
	if fallback >= len(m.rows) {
		fallback = len(m.rows) - 1
	}
	if fallback < 0 {
		fallback = 0
	}
	return fallback
}

func (m *Model) moveTo(i int) {
	if len(m.rows) == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= len(m.rows) {
		i = len(m.rows) - 1
	}
	if i == m.cursor && m.rows[i].TreeID == m.selected {
		return
	}
	m.cursor = i
	m.selected = m.rows[i].TreeID
	m.scrollToCursor(m.treeHeight())
	m.answer.GotoTop()
	m.renderAnswer()
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusErr = isErr
}
