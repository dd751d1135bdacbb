package main

import (
	"github.com/spf13/cobra"

	"github.com/kingrea/keywork/internal/tui"
)

func watchCmd(a *app) *cobra.Command {
	var flagNoWatch bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live status board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []tui.AppOption{tui.WithLogger(a.log.For("tui"))}
			if flagNoWatch {
				opts = append(opts, tui.WithoutWatcher())
			}
			return tui.NewApp(a.cfg, opts...).Run()
		},
	}
	cmd.Flags().BoolVar(&flagNoWatch, "poll-only", false, "Refresh on the timer only, without watching the filesystem")
	return cmd
}
