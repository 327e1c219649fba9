package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spider-crawler/pageview/internal/report"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		out    string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the visit log as CSV, XLSX or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(out), ".")
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			db, err := a.requireStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			visits, err := db.ListVisits(cmd.Context(), limit)
			if err != nil {
				return err
			}

			exp := report.NewExporter(&report.ExportOptions{Format: f, FilePath: out, Delimiter: ','})
			if err := exp.Export(report.VisitReport(visits)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d visits to %s\n", len(visits), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "csv, xlsx or json (default: from --out extension)")
	cmd.Flags().StringVarP(&out, "out", "o", "visits.csv", "output file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "export only the most recent visits (0 = all)")
	return cmd
}
