// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/persona"
)

// PersonaInfo describes one persona for listings.
type PersonaInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// ModelInfo describes one catalog model for listings.
type ModelInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ProviderID  string `json:"provider_id"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

func listPersonas() []PersonaInfo {
	var out []PersonaInfo
	for _, k := range persona.Keys() {
		p, err := persona.Get(k)
		if err != nil {
			continue
		}
		out = append(out, PersonaInfo{Key: k, Name: p.Name(), Description: p.Description(), Default: k == persona.DefaultKey})
	}
	return out
}

func listModels() []ModelInfo {
	var out []ModelInfo
	for _, k := range completion.ModelKeys() {
		m, err := completion.LookupModel(k)
		if err != nil {
			continue
		}
		out = append(out, ModelInfo{Key: k, Name: m.Name, ProviderID: m.Key, Description: m.Description, Default: k == completion.DefaultModelKey})
	}
	return out
}

func newPersonasCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List personas and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			personas, models := listPersonas(), listModels()
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, "personas", map[string]any{"personas": personas, "models": models})
			}

			fmt.Fprintln(w, "Personas:")
			for _, p := range personas {
				fmt.Fprintf(w, "  %-20s %-20s %s%s\n", p.Key, p.Name, p.Description, marker(p.Key == a.cfg.Generation.Persona))
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Models:")
			for _, m := range models {
				fmt.Fprintf(w, "  %-22s %-16s %s%s\n", m.Key, m.Name, m.Description, marker(m.Key == a.cfg.Generation.Model))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func marker(current bool) string {
	if current {
		return " (current)"
	}
	return ""
}
