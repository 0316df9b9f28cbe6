package exportsvc

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/fetch"
)

func report() Report {
	rows := []fetch.Row{
		{"date": "1403-07-10", "title": "اجاره دفتر", "category": "rent", "amount": json.Number("2750000")},
		{"date": "1403-07-09", "title": "تبلیغات", "category": "marketing", "amount": "n/a"},
	}
	rows, sum := aggregate.New(nil).Summarize(rows, aggregate.SummarySpec{AmountField: "amount", CategoryField: "category"})
	return Report{
		Title:   "Extra expenses",
		Link:    "https://ushauri.test/accounting?year=1403&month=7",
		Columns: []string{"date", "title", "category", "amount", "running_total"},
		Rows:    rows,
		Summary: sum,
	}
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, report()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{rowsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(rowsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "title", "category", "amount", "running_total"},
		{"1403-07-10", "اجاره دفتر", "rent", "2750000", "2750000"},
		{"1403-07-09", "تبلیغات", "marketing", "n/a", "2750000"},
	}, rows)

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.True(t, len(summary) > 10)
	assert.Equal(t, []string{"Extra expenses"}, summary[0])
	assert.Equal(t, []string{"Link", "https://ushauri.test/accounting?year=1403&month=7"}, summary[1])
	assert.Equal(t, []string{"Total", "2750000"}, summary[3])
	assert.Equal(t, []string{"Malformed values", "1"}, summary[8])
	assert.Equal(t, []string{"Category", "Amount", "Percent"}, summary[10])
	assert.Equal(t, []string{"rent", "2750000", "100"}, summary[11])
}

func TestWriteExcel_ColumnsFromRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, Report{Rows: []fetch.Row{{"b": 1, "a": decimal.NewFromInt(2)}}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(rowsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"2", "1"}}, rows)
}

func TestSaveExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, SaveExcel(path, report()))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	title, err := f.GetCellValue(summarySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Extra expenses", title)

	assert.Error(t, SaveExcel(filepath.Join(t.TempDir(), "missing", "report.xlsx"), report()))
}
