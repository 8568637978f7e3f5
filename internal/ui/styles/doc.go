// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the whytree terminal
view.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values so light and dark terminals
both read well:

	Purple  - selection and brand
	Cyan    - questions
	Emerald - settled answers, playing state
	Amber   - pausing state
	Rose    - failed nodes

# Theme System (theme.go)

	theme := styles.NewTheme(styles.ThemeOptions{Mode: "auto"})
	line := theme.Question.Render(text)

NoColor switches the renderer to the ASCII profile and glamour to its
"notty" style.

# Spinners (animations.go)

	s := spinner.New(spinner.WithSpinner(styles.LineSpinner.Bubbles()))
*/
package styles
