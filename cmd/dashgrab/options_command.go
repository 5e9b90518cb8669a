package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dashgrab/internal/models"
)

func newOptionsCommand(ctx *commandContext) *cobra.Command {
	var df descriptorFlags

	cmd := &cobra.Command{
		Use:   "options <descriptor.json>",
		Short: "List the renditions that can be downloaded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := df.load(args[0])
			if err != nil {
				return err
			}

			options, err := ctx.newSession(desc, nil).Options(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %s)\n", desc.Title, desc.Kind, formatDuration(desc.DurationSeconds))
			if len(options) == 0 {
				fmt.Fprintln(out, "No downloadable renditions found.")
				return nil
			}
			fmt.Fprintln(out, renderOptions(options))
			return nil
		},
	}
	df.register(cmd)
	return cmd
}

func renderOptions(options []models.SourceOption) string {
	rows := make([][]string, 0, len(options))
	for i, opt := range options {
		rows = append(rows, []string{strconv.Itoa(i + 1), optionTag(opt), opt.Label()})
	}
	return renderTable([]string{"#", "Type", "Rendition"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}

func optionTag(opt models.SourceOption) string {
	switch o := opt.(type) {
	case models.DashVideoOption, models.DashAudioOption:
		return "DASH"
	case models.SubtitleOption:
		return "Subtitles (" + o.Lang + ")"
	case models.DirectOption:
		if o.Suffix != "" {
			return "Variant"
		}
		return "Direct"
	default:
		return opt.Kind().String()
	}
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
