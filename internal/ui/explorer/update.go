// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package explorer

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/whytree/internal/qatree"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case TreeChangedMsg:
		m.refresh()
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			m.setStatus("autosave failed: "+msg.Err.Error(), true)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.answer, cmd = m.answer.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.ctrl.Pause()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Pause):
		if m.ctrl.Playing() {
			m.ctrl.Pause()
			m.setStatus("pausing", false)
		} else {
			m.ctrl.Resume()
			m.setStatus("", false)
		}
		m.refresh()

	case key.Matches(msg, m.keys.Budget):
		m.ctrl.ResumeWithBudget(m.budget)
		m.setStatus(fmt.Sprintf("playing %d more", m.budget), false)
		m.refresh()

	case key.Matches(msg, m.keys.Focus):
		if m.selected == "" {
			break
		}
		queued := m.ctrl.Refocus(m.selected)
		m.setStatus(fmt.Sprintf("focused, %d queued", len(queued)), false)
		m.refresh()

	case key.Matches(msg, m.keys.ClearFocus):
		queued := m.ctrl.Refocus("")
		m.setStatus(fmt.Sprintf("focus cleared, %d queued", len(queued)), false)
		m.refresh()

	case key.Matches(msg, m.keys.Delete):
		if m.selected == "" {
			break
		}
		if m.selected == qatree.RootID {
			m.setStatus("the root question cannot be deleted", true)
			break
		}
		removed := m.ctrl.DeleteBranch(m.selected)
		m.setStatus(fmt.Sprintf("deleted %d nodes", len(removed)), false)
		m.refresh()

	case key.Matches(msg, m.keys.Up):
		m.moveTo(m.cursor - 1)

	case key.Matches(msg, m.keys.Down):
		m.moveTo(m.cursor + 1)

	case key.Matches(msg, m.keys.Top):
		m.moveTo(0)

	case key.Matches(msg, m.keys.Bottom):
		m.moveTo(len(m.rows) - 1)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()

	default:
		var cmd tea.Cmd
		m.answer, cmd = m.answer.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width
	m.ready = true
	m.markdown = nil
	m.layout()
}

// layout splits the screen between the tree and the answer pane.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	paneHeight := m.height / 3
	if paneHeight < 5 {
		paneHeight = 5
	}
	// Border and title
	m.answer.Width = max(m.width-4, 10)
	m.answer.Height = max(paneHeight-3, 1)
	m.renderedFor = ""
	m.renderAnswer()
}

// treeHeight is the number of rows available to the outline.
func (m Model) treeHeight() int {
	used := 1 + m.answer.Height + 3 + m.footerHeight()
	return max(m.height-used, 1)
}

func (m Model) footerHeight() int {
	if !m.help.ShowAll {
		return 1
	}
	if m.status != "" {
		return 2 + m.fullHelpRows()
	}
	return 1 + m.fullHelpRows()
}

func (m Model) fullHelpRows() int {
	rows := 0
	for _, col := range m.keys.FullHelp() {
		rows = max(rows, len(col))
	}
	return rows
}
