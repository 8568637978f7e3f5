// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultModelKey is the catalog entry used when none is configured.
const DefaultModelKey = "openai/gpt-3.5-turbo"

// ErrUnknownModel is returned by LookupModel for a key not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Model is a catalog entry.
type Model struct {
	Name        string
	Key         string // provider model id
	Description string
}

var models = map[string]Model{
	"openai/gpt-3.5-turbo": {
		Name:        "GPT-3.5 Turbo",
		Key:         "gpt-3.5-turbo",
		Description: "Fast and semi-smart",
	},
	"openai/gpt4": {
		Name:        "GPT-4",
		Key:         "gpt-4",
		Description: "Slow but very smart",
	},
}

// LookupModel returns the catalog entry for key.
func LookupModel(key string) (Model, error) {
	m, ok := models[key]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return m, nil
}

// ResolveModel maps a catalog key to its provider id. Unknown values are
// assumed to already be provider ids.
func ResolveModel(key string) string {
	if m, ok := models[key]; ok {
		return m.Key
	}
	return key
}

// ModelKeys returns the catalog keys in sorted order.
func ModelKeys() []string {
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
