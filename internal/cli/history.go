// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/storage"
	"github.com/jeranaias/whytree/internal/util"
)

// TreeSummary is one row of `whytree history`.
type TreeSummary struct {
	ID        string    `json:"id"`
	SeedQuery string    `json:"seed_query"`
	Nodes     int       `json:"nodes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func summarize(trees []storage.SavedTree) []TreeSummary {
	out := make([]TreeSummary, 0, len(trees))
	for _, t := range trees {
		out = append(out, TreeSummary{
			ID:        t.ID,
			SeedQuery: t.SeedQuery,
			Nodes:     t.NodeCount(),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	return out
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List saved trees, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return commandError("history", "open storage", err)
			}
			defer store.Close()

			trees, err := store.LoadHistory(cmd.Context())
			if err != nil {
				return commandError("history", "list trees", err)
			}
			if limit > 0 && len(trees) > limit {
				trees = trees[:limit]
			}
			rows := summarize(trees)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), "history", rows)
			}
			printHistory(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show at most this many trees")

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a saved tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return commandError("history", "open storage", err)
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return commandError("history rm", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

const seedColumnWidth = 48

func printHistory(w io.Writer, rows []TreeSummary) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No saved trees. Start one with: whytree explore \"your question\"")
		return
	}
	fmt.Fprintf(w, "%-36s  %-*s  %5s  %s\n", "ID", seedColumnWidth, "Question", "Nodes", "Updated")
	for _, r := range rows {
		seed := util.TruncateWidth(util.OneLine(r.SeedQuery), seedColumnWidth)
		pad := seedColumnWidth - util.StringWidth(seed)
		if pad < 0 {
			pad = 0
		}
		fmt.Fprintf(w, "%-36s  %s%s  %5d  %s\n", r.ID, seed, strings.Repeat(" ", pad), r.Nodes, r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}
