// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package partialjson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeranaias/whytree/internal/qatree"
)

// Repair closes any open strings, arrays and objects left at the end of
// partial and drops closing brackets that match nothing. Valid JSON is
// returned unchanged.
func Repair(partial string) string {
	var out strings.Builder
	out.Grow(len(partial) + 8)

	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(partial); i++ {
		c := partial[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				stack = stack[:len(stack)-1]
			}
			out.WriteByte(c)
			continue
		}

		switch c {
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				continue
			}
		case '"':
			inString = true
			stack = append(stack, '"')
		case ',':
			if onlySpaceAfter(partial, i+1) {
				continue
			}
		}
		out.WriteByte(c)
	}

	if escaped {
		// A lone trailing backslash would escape the closing quote.
		s := out.String()
		out.Reset()
		out.WriteString(s[:len(s)-1])
	}
	if !inString && endsWithColon(out.String()) {
		out.WriteString("null")
	}

	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			out.WriteByte('}')
		case '[':
			out.WriteByte(']')
		case '"':
			out.WriteByte('"')
		}
	}
	return out.String()
}

func onlySpaceAfter(s string, from int) bool {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

func endsWithColon(s string) bool {
	t := strings.TrimRight(s, " \t\r\n")
	return strings.HasSuffix(t, ":")
}

// Unmarshal repairs partial and decodes it into v.
func Unmarshal(partial string, v any) error {
	return json.Unmarshal([]byte(Repair(partial)), v)
}

// ParseQuestions decodes a possibly truncated JSON array of scored
// questions.
func ParseQuestions(text string) ([]qatree.ScoredQuestion, error) {
	var qs []qatree.ScoredQuestion
	if err := Unmarshal(text, &qs); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return qs, nil
}

// ParseComplete decodes text without repair. It is used once a stream has
// ended to tell a truncated response from a well-formed one.
func ParseComplete(text string) ([]qatree.ScoredQuestion, error) {
	var qs []qatree.ScoredQuestion
	if err := json.Unmarshal([]byte(text), &qs); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return qs, nil
}
