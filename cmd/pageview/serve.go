package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spider-crawler/pageview/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP bridge for a host shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f := a.newFetcher()
			defer f.Close()

			db, err := a.openStorage()
			if err != nil {
				return err
			}

			deps := server.Deps{
				Commands: a.newCommands(f),
				Browser:  a.newSession(f, db),
				Version:  version,
			}
			if db != nil {
				defer db.Close()
				deps.Visits = db
			}

			return server.New(a.cfg.Server, deps, a.log).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
