package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit int
		stats bool
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the visit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.requireStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case clear:
				n, err := db.ClearVisits(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d visits\n", n)
				return nil

			case stats:
				s, err := db.GetStats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Visits:           %d\n", s.TotalVisits)
				fmt.Fprintf(out, "Distinct URLs:    %d\n", s.DistinctURLs)
				fmt.Fprintf(out, "Error statuses:   %d\n", s.ErrorStatuses)
				fmt.Fprintf(out, "Failed:           %d\n", s.Failed)
				fmt.Fprintf(out, "Opened externally: %d\n", s.OpenedExternal)
				return nil
			}

			visits, err := db.ListVisits(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSTATUS\tCHARSET\tURL\tTITLE")
			for _, v := range visits {
				status := fmt.Sprintf("%d", v.StatusCode)
				switch {
				case v.Failed():
					status = "failed"
				case v.OpenedExternal:
					status += " (ext)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					v.VisitedAt.Local().Format("2006-01-02 15:04:05"), status, v.Charset, v.URL, v.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of visits to show (0 = all)")
	cmd.Flags().BoolVar(&stats, "stats", false, "show summary counts")
	cmd.Flags().BoolVar(&clear, "clear", false, "delete the visit log")
	return cmd
}
