package exportsvc

import (
	"bytes"
	"io"
	"sort"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/fetch"
)

const (
	rowsSheet    = "Rows"
	summarySheet = "Summary"
)

// Report is one loaded page of a table, as exported to a workbook.
type Report struct {
	Title   string
	Link    string // shareable URL the page was loaded from
	Columns []string
	Rows    []fetch.Row
	Summary aggregate.Summary
}

// WriteExcel renders rep as a workbook with a Rows sheet and a Summary sheet.
func WriteExcel(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rowsSheet); err != nil {
		return errors.Wrap(err, "naming rows sheet")
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.Wrap(err, "creating summary sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}

	if err = writeRows(f, rep, bold); err != nil {
		return err
	}
	if err = writeSummary(f, rep, bold); err != nil {
		return err
	}
	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

// SaveExcel writes the workbook to path, replacing any previous file atomically.
func SaveExcel(path string, rep Report) error {
	var buf bytes.Buffer
	if err := WriteExcel(&buf, rep); err != nil {
		return err
	}
	return errors.Wrapf(atomic.WriteFile(path, &buf), "saving %s", path)
}

func writeRows(f *excelize.File, rep Report, header int) error {
	cols := rep.Columns
	if len(cols) == 0 && len(rep.Rows) > 0 {
		cols = columnsOf(rep.Rows[0])
	}
	if len(cols) == 0 {
		return nil
	}

	head := make([]interface{}, len(cols))
	for i, col := range cols {
		head[i] = col
	}
	if err := f.SetSheetRow(rowsSheet, "A1", &head); err != nil {
		return errors.Wrap(err, "writing header")
	}
	last, _ := excelize.ColumnNumberToName(len(cols))
	if err := f.SetCellStyle(rowsSheet, "A1", last+"1", header); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, row := range rep.Rows {
		vals := make([]interface{}, len(cols))
		for j, col := range cols {
			vals[j] = cellValue(row[col])
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(rowsSheet, cell, &vals); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, rep Report, header int) error {
	sum := rep.Summary
	lines := [][]interface{}{
		{rep.Title},
		{"Link", rep.Link},
		{},
		{"Total", sum.Total.InexactFloat64()},
		{"Revenue", sum.Revenue.InexactFloat64()},
		{"Costs", sum.Costs.InexactFloat64()},
		{"Profit", sum.Profit.InexactFloat64()},
		{"Profit margin (%)", sum.ProfitMargin.Round(1).InexactFloat64()},
		{"Malformed values", sum.Malformed},
	}
	if len(sum.Categories) > 0 {
		lines = append(lines, []interface{}{}, []interface{}{"Category", "Amount", "Percent"})
		for _, share := range sum.Categories {
			lines = append(lines, []interface{}{share.Category, share.Amount.InexactFloat64(), share.Percent.InexactFloat64()})
		}
	}

	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		line := line
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return errors.Wrapf(err, "writing summary line %d", i+1)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", header); err != nil {
		return errors.Wrap(err, "styling title")
	}
	return nil
}

// cellValue keeps numbers numeric in the sheet.
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.InexactFloat64()
	}
	if d, ok := aggregate.ToDecimal(v); ok {
		return d.InexactFloat64()
	}
	return fetch.Row{"v": v}.String("v")
}

func columnsOf(row fetch.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
