// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package qatree

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ScoredQuestion is one generated follow-up question.
type ScoredQuestion struct {
	Question string `json:"question"`

	// Score rates how interesting the question is, 1 to 10.
	Score Score `json:"score"`

	// PersonaSummary is set by personas that imagine who is asking.
	PersonaSummary string `json:"persona_summary,omitempty"`
}

// Score is a question score. It decodes from a number or a numeric string;
// anything else, including NaN and infinities, decodes to zero.
type Score float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*s = 0
		return nil
	}
	*s = Score(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(s))
}
