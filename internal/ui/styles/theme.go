// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ThemeOptions selects the palette.
type ThemeOptions struct {
	// Mode is "dark", "light" or "auto" (detect from the terminal).
	Mode string

	// NoColor renders plain text.
	NoColor bool

	// Output is the terminal the theme renders for. Defaults to stdout.
	Output io.Writer
}

// Theme holds every style the tree view draws with.
type Theme struct {
	IsDark       bool
	NoColor      bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// Header
	Header lipgloss.Style
	Brand  lipgloss.Style
	Seed   lipgloss.Style

	// Pool state
	StatusPlaying lipgloss.Style
	StatusPausing lipgloss.Style
	StatusPaused  lipgloss.Style

	// Tree rows
	Question       lipgloss.Style
	QuestionDimmed lipgloss.Style
	Selected       lipgloss.Style
	Pending        lipgloss.Style
	Settled        lipgloss.Style
	Failed         lipgloss.Style
	FocusMark      lipgloss.Style

	// Answer pane and footer
	AnswerPane  lipgloss.Style
	AnswerTitle lipgloss.Style
	Muted       lipgloss.Style
	Help        lipgloss.Style
	Error       lipgloss.Style
}

// NewTheme builds a theme for the given options.
func NewTheme(opts ThemeOptions) *Theme {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	r := lipgloss.NewRenderer(out)
	if opts.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}

	var isDark bool
	switch opts.Mode {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = r.HasDarkBackground()
	}
	r.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		NoColor:      opts.NoColor,
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.initStyles()
	return t
}

// Renderer returns the lipgloss renderer the styles are bound to.
func (t *Theme) Renderer() *lipgloss.Renderer {
	return t.renderer
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.NoColor || t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.Header = s().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1)
	t.Brand = s().Bold(true).Foreground(Purple)
	t.Seed = s().Bold(true).Foreground(Cyan)

	t.StatusPlaying = s().Bold(true).Foreground(Emerald)
	t.StatusPausing = s().Bold(true).Foreground(Amber)
	t.StatusPaused = s().Foreground(TextSecondary)

	t.Question = s().Foreground(Cyan)
	t.QuestionDimmed = s().Foreground(TextMuted)
	t.Selected = s().Bold(true).Foreground(TextPrimary).Background(SelectionBg)
	t.Pending = s().Foreground(Amber)
	t.Settled = s().Foreground(Emerald)
	t.Failed = s().Foreground(Rose)
	t.FocusMark = s().Bold(true).Foreground(Purple)

	t.AnswerPane = s().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.AnswerTitle = s().Bold(true).Foreground(Purple)
	t.Muted = s().Foreground(TextMuted)
	t.Help = s().Foreground(TextSecondary)
	t.Error = s().Bold(true).Foreground(Rose)
}
