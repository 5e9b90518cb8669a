package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dashgrab/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external tools used for muxing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			probes := deps.ResolveAll(ctx.tools())
			rows := make([][]string, 0, len(probes))
			for _, p := range probes {
				state, detail := "available", p.Path
				if !p.Available {
					state, detail = "missing", p.Detail
					if p.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{p.Name, p.Command, state, p.Purpose, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tool", "Command", "Status", "Used for", "Detail"}, rows, nil))
			return nil
		},
	}
}
