// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/relay"
	"github.com/jeranaias/whytree/internal/util"
)

func newExamplesCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List the example trees a relay serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Transport.RelayURL == "" {
				return usageError("no relay configured; set transport.relay_url or WHYTREE_RELAY_URL")
			}
			client := relay.NewClient(a.cfg.Transport.RelayURL).WithHTTPClient(&http.Client{Timeout: a.cfg.Transport.Timeout()})
			list, err := client.Examples(cmd.Context())
			if err != nil {
				return commandError("examples", "list", err)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, "examples", list)
			}
			if len(list) == 0 {
				fmt.Fprintln(w, "The relay has no examples.")
				return nil
			}
			for _, e := range list {
				fmt.Fprintf(w, "%-36s  %5d  %s\n", e.ID, e.Nodes, util.TruncateWidth(util.OneLine(e.SeedQuery), 60))
			}
			fmt.Fprintln(w, "\nPlay one with: whytree replay --example <id>")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
