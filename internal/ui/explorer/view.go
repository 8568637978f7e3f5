// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package explorer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/whytree/internal/ui/styles"
	"github.com/jeranaias/whytree/internal/util"
	"github.com/jeranaias/whytree/internal/view"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.treeView())
	b.WriteString("\n")
	b.WriteString(m.answerView())
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) headerView() string {
	t := m.theme
	status := m.statusText()
	brand := t.Brand.Render("whytree")

	room := m.width - lipgloss.Width(brand) - lipgloss.Width(status) - 4
	seed := ""
	if room > 3 {
		seed = " " + t.Seed.Render(util.TruncateWidth(util.OneLine(m.snap.SeedQuery()), room))
	}
	left := brand + seed
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(status) - 2
	if gap < 1 {
		gap = 1
	}
	return t.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + status)
}

// statusText reports the play state and counts. Between a pause request and
// the last in-flight call finishing the state reads "pausing...".
func (m Model) statusText() string {
	t := m.theme
	var state string
	switch {
	case m.playing:
		state = t.StatusPlaying.Render("playing")
	case !m.fullyPaused:
		state = t.StatusPausing.Render("pausing...")
	default:
		state = t.StatusPaused.Render("paused")
	}
	counts := t.Muted.Render(fmt.Sprintf("%d answered", m.completed))
	if m.playing && m.remaining > 0 {
		counts = t.Muted.Render(fmt.Sprintf("%d answered, %d left", m.completed, m.remaining))
	}
	return state + " " + counts
}

// =============================================================================
// TREE
// =============================================================================

func (m *Model) scrollToCursor(height int) {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
	if m.offset > len(m.rows)-height {
		m.offset = max(len(m.rows)-height, 0)
	}
}

func (m Model) treeView() string {
	height := m.treeHeight()
	m.scrollToCursor(height)

	lines := make([]string, 0, height)
	for i := m.offset; i < len(m.rows) && len(lines) < height; i++ {
		lines = append(lines, m.rowView(m.rows[i], i == m.cursor))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) rowView(n view.Node, selected bool) string {
	t := m.theme
	indent := strings.Repeat("  ", n.Depth)

	var marker string
	switch {
	case n.Failed:
		marker = t.Failed.Render(styles.StatusIndicators.Failed)
	case n.Pending && !m.fullyPaused && m.startedProcessing(n.TreeID):
		marker = m.spin.View()
	case n.Pending:
		marker = t.Pending.Render(styles.StatusIndicators.Pending)
	default:
		marker = t.Settled.Render(styles.StatusIndicators.Settled)
	}

	focus := ""
	if n.TreeID == m.focus && m.focus != "" {
		focus = t.FocusMark.Render(styles.StatusIndicators.Focus) + " "
	}

	room := m.width - lipgloss.Width(indent) - lipgloss.Width(marker) - lipgloss.Width(focus) - 2
	text := util.TruncateWidth(util.OneLine(n.Text), max(room, 1))
	if text == "" {
		text = "..."
	}

	style := t.Question
	switch {
	case selected:
		style = t.Selected
	case n.Dimmed:
		style = t.QuestionDimmed
	}
	return indent + marker + " " + focus + style.Render(text)
}

func (m Model) startedProcessing(id string) bool {
	n, ok := m.snap.Get(id)
	return ok && n.StartedProcessing
}

// =============================================================================
// ANSWER PANE
// =============================================================================

// renderAnswer refreshes the pane content when the selected answer changed.
func (m *Model) renderAnswer() {
	if !m.ready {
		return
	}
	n, ok := m.snap.Get(m.selected)
	var src string
	switch {
	case !ok:
		src = ""
	case n.Failed:
		src = "\x00failed:" + n.Error
	default:
		src = n.Answer
	}
	if m.renderedFor == m.selected && m.renderedSrc == src {
		return
	}
	m.renderedFor = m.selected
	m.renderedSrc = src

	switch {
	case !ok:
		m.answer.SetContent("")
	case n.Failed:
		m.answer.SetContent(m.theme.Error.Render("generation failed: " + n.Error))
	case n.Answer == "":
		m.answer.SetContent(m.theme.Muted.Render("(no answer yet)"))
	default:
		m.answer.SetContent(m.renderMarkdown(n.Answer))
	}
}

func (m *Model) renderMarkdown(src string) string {
	if m.markdown == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle()),
			glamour.WithWordWrap(m.answer.Width),
		)
		if err != nil {
			return src
		}
		m.markdown = r
	}
	out, err := m.markdown.Render(src)
	if err != nil {
		return src
	}
	return strings.Trim(out, "\n")
}

func (m Model) answerView() string {
	t := m.theme
	title := "answer"
	if n, ok := m.snap.Get(m.selected); ok {
		title = util.OneLine(n.Question)
	}
	title = t.AnswerTitle.Render(util.TruncateWidth(title, max(m.width-6, 1)))
	body := title + "\n" + m.answer.View()
	return t.AnswerPane.Width(max(m.width-2, 1)).Render(body)
}

// =============================================================================
// FOOTER
// =============================================================================

func (m Model) footerView() string {
	h := m.help.View(m.keys)
	if m.status == "" {
		return h
	}
	style := m.theme.Muted
	if m.statusErr {
		style = m.theme.Error
	}
	if m.help.ShowAll {
		return style.Render(m.status) + "\n" + h
	}
	return style.Render(m.status) + "  " + h
}
