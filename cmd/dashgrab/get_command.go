package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var df descriptorFlags

	cmd := &cobra.Command{
		Use:   "get <descriptor.json> <option-number>",
		Short: "Download one rendition listed by the options command",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := df.load(args[0])
			if err != nil {
				return err
			}
			choice, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("option number %q is not a number", args[1])
			}

			var progress *terminalProgress
			report := newLogProgress(ctx.logger()).report
			if isatty.IsTerminal(os.Stderr.Fd()) {
				progress = newTerminalProgress(os.Stderr)
				report = progress.report
			}

			s := ctx.newSession(desc, report)
			options, err := s.Options(cmd.Context())
			if err != nil {
				return err
			}
			if choice < 1 || choice > len(options) {
				return fmt.Errorf("option %d is out of range (1-%d)", choice, len(options))
			}

			path, err := s.Acquire(cmd.Context(), options[choice-1])
			if progress != nil {
				progress.finish()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	df.register(cmd)
	return cmd
}
