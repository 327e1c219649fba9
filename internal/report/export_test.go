package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spider-crawler/pageview/internal/report"
	"github.com/spider-crawler/pageview/internal/storage"
)

func sampleReport() *report.Report {
	visited := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return report.VisitReport([]*storage.Visit{
		{
			URL:          "https://example.jp/",
			FinalURL:     "https://example.jp/top",
			StatusCode:   200,
			ContentType:  "text/html; charset=Shift_JIS",
			Charset:      "shift_jis",
			Title:        "こんにちは",
			ResponseTime: 250 * time.Millisecond,
			VisitedAt:    visited,
		},
		{
			URL:            "https://down.example/",
			ErrorMessage:   "timeout",
			OpenedExternal: true,
			VisitedAt:      visited.Add(time.Minute),
		},
	})
}

func TestParseFormat(t *testing.T) {
	f, err := report.ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, report.FormatXLSX, f)

	_, err = report.ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := report.NewExporter(nil).Write(&buf, sampleReport())
	require.NoError(t, err)

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, report.VisitColumns, records[0])
	assert.Equal(t, []string{
		"2026-03-01T09:30:00Z", "https://example.jp/", "https://example.jp/top", "200",
		"text/html; charset=Shift_JIS", "shift_jis", "こんにちは", "250", "No", "",
	}, records[1])
	assert.Equal(t, "Yes", records[2][8])
	assert.Equal(t, "timeout", records[2][9])
}

func TestWriteCSVMaxRowsAndDelimiter(t *testing.T) {
	var buf bytes.Buffer
	exp := report.NewExporter(&report.ExportOptions{Format: report.FormatCSV, MaxRows: 1, Delimiter: ';'})
	require.NoError(t, exp.Write(&buf, sampleReport()))

	r := csv.NewReader(bytes.NewReader(buf.Bytes()[3:]))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	exp := report.NewExporter(&report.ExportOptions{Format: report.FormatJSON})
	require.NoError(t, exp.Write(&buf, sampleReport()))

	var decoded report.JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Visits", decoded.Metadata.Name)
	assert.Equal(t, 2, decoded.Metadata.TotalCount)
	require.Len(t, decoded.Rows, 2)
	assert.Equal(t, "こんにちは", decoded.Rows[0]["Title"])
	assert.EqualValues(t, 200, decoded.Rows[0]["Status Code"])
	assert.Equal(t, true, decoded.Rows[1]["Opened Externally"])

	// Non-ASCII stays readable.
	assert.Contains(t, buf.String(), "こんにちは")
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.xlsx")
	exp := report.NewExporter(&report.ExportOptions{Format: report.FormatXLSX, FilePath: path})
	require.NoError(t, exp.Export(sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Visits", "Metadata"}, f.GetSheetList())

	rows, err := f.GetRows("Visits")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, report.VisitColumns, rows[0])
	assert.Equal(t, "こんにちは", rows[1][6])
	assert.Equal(t, "200", rows[1][3])

	meta, err := f.GetRows("Metadata")
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Rows", "2"}, meta[1])
}

func TestExportUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.pdf")
	exp := report.NewExporter(&report.ExportOptions{Format: "pdf", FilePath: path})

	assert.Error(t, exp.Export(sampleReport()))
}

func TestExportCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.csv")
	exp := report.NewExporter(&report.ExportOptions{Format: report.FormatCSV, FilePath: path})
	require.NoError(t, exp.Export(sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://example.jp/top")
}
