package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/pagedlist"
	"github.com/trezcool/ushauri/core/resource"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// renderView prints a table the way the dashboard lays it out: title, rows, pagination and summary.
func renderView(res resource.Resource, v pagedlist.View, link string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Title))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render(link))
	b.WriteByte('\n')

	switch v.Status {
	case pagedlist.Failed:
		b.WriteString(errorStyle.Render("error: " + v.Err.Error()))
		b.WriteByte('\n')
	case pagedlist.Cancelled:
		b.WriteString(mutedStyle.Render("cancelled"))
		b.WriteByte('\n')
	}
	if v.Loading {
		b.WriteString(mutedStyle.Render("loading..."))
		b.WriteByte('\n')
	}

	if len(v.Rows) == 0 {
		if v.Status == pagedlist.Success {
			b.WriteString("no results\n")
		}
	} else {
		b.WriteString(renderRows(res.Columns, v))
		b.WriteByte('\n')
	}

	if v.TotalPages > 0 {
		fmt.Fprintf(&b, "page %d/%d, %d rows\n", v.Page, v.TotalPages, v.Count)
	}
	b.WriteString(renderSummary(res, v))
	return strings.TrimRight(b.String(), "\n")
}

func renderRows(cols []string, v pagedlist.View) string {
	rows := make([][]string, len(v.Rows))
	for i, row := range v.Rows {
		rows[i] = make([]string, len(cols))
		for j, col := range cols {
			rows[i][j] = row.String(col)
		}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(cols...).
		Rows(rows...).
		String()
}

func renderSummary(res resource.Resource, v pagedlist.View) string {
	spec, sum := res.Summary, v.Summary
	if v.Status != pagedlist.Success || spec == (aggregate.SummarySpec{}) {
		return ""
	}

	var b strings.Builder
	if spec.AmountField != "" {
		fmt.Fprintf(&b, "total %s: %s\n", spec.AmountField, sum.Total)
	}
	for _, share := range sum.Categories {
		category := share.Category
		if category == "" {
			category = "(none)"
		}
		fmt.Fprintf(&b, "  %s: %s (%s%%)\n", category, share.Amount, share.Percent.StringFixed(1))
	}
	if spec.RevenueField != "" {
		fmt.Fprintf(&b, "revenue %s, costs %s, profit %s, margin %s%%\n",
			sum.Revenue, sum.Costs, sum.Profit, sum.ProfitMargin.StringFixed(1))
	}
	if sum.Malformed > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d malformed values counted as zero", sum.Malformed)))
		b.WriteByte('\n')
	}
	return b.String()
}
