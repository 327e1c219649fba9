package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/opener"
	"github.com/spider-crawler/pageview/internal/rewrite"
	"github.com/spider-crawler/pageview/internal/session"
	"github.com/spider-crawler/pageview/internal/storage"
)

func newBrowseCommand(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "browse <url>",
		Short: "Load a page for in-app display, falling back to the system browser",
		Long: `browse completes a missing scheme with https://, fetches the page and writes the
display-ready HTML. Pages that fail to load or answer with an error status are
opened in the system browser instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := a.newFetcher()
			defer f.Close()

			db, err := a.openStorage()
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			sess := a.newSession(f, db)

			view, err := sess.Navigate(cmd.Context(), args[0])
			if errors.Is(err, session.ErrOpenedExternally) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Opened in system browser: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%s [%d, %s]\n", view.Title, view.Status, view.Charset)

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}
			_, err = io.WriteString(w, view.HTML)
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the HTML to a file instead of stdout")
	return cmd
}

// newSession wires a session to the fetcher, the open_external_url command
// and, when db is non-nil, the visit log.
func (a *app) newSession(f *fetcher.Fetcher, db *storage.Database) *session.Session {
	opts := []session.Option{
		session.WithLogger(a.log),
		session.WithRewriteOptions(rewrite.Options{DisableExternal: a.cfg.Rewrite.DisableExternal}),
	}
	if db != nil {
		opts = append(opts, session.WithRecorder(db))
	}

	cmds := a.newCommands(f)
	return session.New(f, opener.Func(cmds.OpenExternalURL), opts...)
}
