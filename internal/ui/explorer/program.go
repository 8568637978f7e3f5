// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package explorer

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the explorer full screen and blocks until the user quits or
// ctx is cancelled. bridge may be nil.
func Run(ctx context.Context, m Model, bridge *Bridge, opts ...tea.ProgramOption) (Model, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	base := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}
	p := tea.NewProgram(m, append(base, opts...)...)

	if bridge != nil {
		go bridge.run(ctx, p.Send)
	}

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	fm, ok := final.(Model)
	if !ok {
		fm = m
	}
	return fm, err
}
