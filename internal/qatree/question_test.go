// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package qatree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Score
	}{
		{"number", `8`, 8},
		{"fraction", `7.5`, 7.5},
		{"numeric string", `"9"`, 9},
		{"word", `"high"`, 0},
		{"null", `null`, 0},
		{"nan", `"NaN"`, 0},
		{"inf", `"Inf"`, 0},
		{"negative infinity", `"-Infinity"`, 0},
		{"overflow", `1e999`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q ScoredQuestion
			require.NoError(t, json.Unmarshal([]byte(`{"question":"why?","score":`+tt.raw+`}`), &q))
			assert.Equal(t, tt.want, q.Score)

			_, err := json.Marshal(q)
			assert.NoError(t, err)
		})
	}
}
