// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/whytree/internal/config"
)

// errNoQuestion is returned when the prompt is left empty or aborted.
var errNoQuestion = errors.New("no question given")

// questionPrompt reads a seed question with line editing and history.
type questionPrompt struct {
	line        *liner.State
	historyFile string
}

func newQuestionPrompt() *questionPrompt {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	p := &questionPrompt{
		line:        line,
		historyFile: filepath.Join(dir, "question_history"),
	}
	if f, err := os.Open(p.historyFile); err == nil {
		p.line.ReadHistory(f)
		f.Close()
	}
	return p
}

// Ask prompts once. An empty answer or Ctrl+C returns errNoQuestion.
func (p *questionPrompt) Ask(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", errNoQuestion
		}
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errNoQuestion
	}
	p.line.AppendHistory(input)
	return input, nil
}

// Close saves history (0600) and restores the terminal.
func (p *questionPrompt) Close() {
	if err := os.MkdirAll(filepath.Dir(p.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			p.line.WriteHistory(f)
			f.Close()
		}
	}
	p.line.Close()
}
