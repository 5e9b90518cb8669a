package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dashgrab/internal/caption"
)

func newSRTCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "srt <captions.vtt>...",
		Short: "Convert WebVTT caption files into SRT subtitles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				srtPath, err := caption.ConvertFile(path)
				switch {
				case errors.Is(err, caption.ErrNoCues):
					ctx.logger().Warnf("%s has no cues, left unchanged", path)
				case err != nil:
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				default:
					fmt.Fprintln(cmd.OutOrStdout(), srtPath)
				}
			}
			return errors.Join(errs...)
		},
	}
}
