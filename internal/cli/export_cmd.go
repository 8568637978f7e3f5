// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/config"
	"github.com/jeranaias/whytree/internal/export"
)

func newExportCommand(a *app) *cobra.Command {
	opts := export.DefaultOptions()
	var (
		format   string
		toStdout bool
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved tree as JSON, Markdown or HTML",
		Example: `  whytree export 0b6c… --format md
  whytree export 0b6c… --format html --open
  whytree export 0b6c… --stdout | jq .`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := export.ForFormat(format, opts)
			if err != nil {
				return usageError("%v (formats: %s)", err, strings.Join(export.Formats(), ", "))
			}
			opts.OutputDir = config.ExpandPath(opts.OutputDir)

			store, err := a.openStore()
			if err != nil {
				return commandError("export", "open storage", err)
			}
			defer store.Close()

			saved, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return commandError("export", args[0], err)
			}

			if toStdout {
				data, err := exp.Export(saved)
				if err != nil {
					return commandError("export", "render", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			path, err := export.ExportToFile(saved, exp, opts)
			if err != nil {
				return commandError("export", "write file", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "json", "json, md or html")
	f.StringVarP(&opts.OutputDir, "output", "o", opts.OutputDir, "output directory")
	f.BoolVar(&opts.OpenAfterExport, "open", false, "open the file after writing it")
	f.BoolVar(&opts.IncludeMetadata, "metadata", opts.IncludeMetadata, "include metadata (markdown frontmatter)")
	f.StringVar(&opts.Theme, "theme", opts.Theme, "html theme: dark or light")
	f.BoolVar(&toStdout, "stdout", false, "write to stdout instead of a file")
	return cmd
}
