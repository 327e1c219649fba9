// Package report turns the visit log into tabular exports.
package report

import (
	"time"

	"github.com/spider-crawler/pageview/internal/storage"
)

// VisitColumns is the column order of a visit report.
var VisitColumns = []string{
	"Visited At",
	"URL",
	"Final URL",
	"Status Code",
	"Content Type",
	"Charset",
	"Title",
	"Response Time (ms)",
	"Opened Externally",
	"Error",
}

// Report is a named table ready for export.
type Report struct {
	Name       string
	Columns    []string
	Rows       []*ReportRow
	TotalCount int
	Generated  time.Time
}

// ReportRow is a single row keyed by column name.
type ReportRow struct {
	Values map[string]interface{}
}

// VisitReport builds a report from visits, keeping their order.
func VisitReport(visits []*storage.Visit) *Report {
	r := &Report{
		Name:       "Visits",
		Columns:    VisitColumns,
		Rows:       make([]*ReportRow, 0, len(visits)),
		TotalCount: len(visits),
		Generated:  time.Now(),
	}

	for _, v := range visits {
		r.Rows = append(r.Rows, &ReportRow{Values: map[string]interface{}{
			"Visited At":         v.VisitedAt,
			"URL":                v.URL,
			"Final URL":          v.FinalURL,
			"Status Code":        v.StatusCode,
			"Content Type":       v.ContentType,
			"Charset":            v.Charset,
			"Title":              v.Title,
			"Response Time (ms)": v.ResponseTime.Milliseconds(),
			"Opened Externally":  v.OpenedExternal,
			"Error":              v.ErrorMessage,
		}})
	}
	return r
}
