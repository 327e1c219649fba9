package main

import (
	"github.com/spf13/cobra"
)

func newOpenCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <url>",
		Short: "Open a URL in the system browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := a.newFetcher()
			defer f.Close()
			return a.newCommands(f).OpenExternalURL(args[0])
		},
	}
}
