// Package aggregate derives summary figures from a batch of rows: running totals,
// category percentage breakdowns and profit margins.
//
// Amounts are coerced to decimal.Decimal at this boundary whatever their wire type
// (JSON number, numeric string, float). Values that cannot be coerced count as zero
// and are reported once per batch, never per row.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/fetch"
)

// DefaultRunningField is the field RunningSum annotates when none is given.
const DefaultRunningField = "running_total"

var hundred = decimal.NewFromInt(100)

type (
	// SummarySpec names the row fields a resource's summary is computed from. Empty fields are skipped.
	SummarySpec struct {
		AmountField   string `json:"amount_field" validate:"omitempty,queryfield"`
		CategoryField string `json:"category_field" validate:"omitempty,queryfield"`
		RunningField  string `json:"running_field" validate:"omitempty,queryfield"`
		RevenueField  string `json:"revenue_field" validate:"required_with=CostField,omitempty,queryfield"`
		CostField     string `json:"cost_field" validate:"required_with=RevenueField,omitempty,queryfield"`
	}

	CategoryShare struct {
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Percent  decimal.Decimal `json:"percent"`
	}

	// Summary is a pure function of a RowBatch; it is recomputed from scratch on every batch.
	Summary struct {
		Total        decimal.Decimal `json:"total"`
		Categories   []CategoryShare `json:"categories"`
		Revenue      decimal.Decimal `json:"revenue"`
		Costs        decimal.Decimal `json:"costs"`
		Profit       decimal.Decimal `json:"profit"`
		ProfitMargin decimal.Decimal `json:"profit_margin"`
		Malformed    int             `json:"malformed"`
	}

	// Engine computes aggregates. It holds no state besides where to report coerced values.
	Engine struct {
		logger core.Logger
	}
)

func New(logger core.Logger) *Engine {
	return &Engine{logger: logger}
}

// RunningSum returns copies of rows annotated with the cumulative sum of amountField, in the given order.
// sumField defaults to DefaultRunningField.
func (e *Engine) RunningSum(rows []fetch.Row, amountField, sumField string) []fetch.Row {
	c := newCoercer(amountField)
	out := runningSum(rows, amountField, sumField, c.pass(amountField))
	e.report(c)
	return out
}

// CategoryTotals sums amountField per value of categoryField and returns the totals with their grand total.
func (e *Engine) CategoryTotals(rows []fetch.Row, categoryField, amountField string) (map[string]decimal.Decimal, decimal.Decimal) {
	c := newCoercer(amountField)
	totals, total := categoryTotals(rows, categoryField, amountField, c.pass(amountField))
	e.report(c)
	return totals, total
}

// Summarize annotates rows with their running total and computes the batch summary.
// A malformed value is counted once per field however many figures read it.
func (e *Engine) Summarize(rows []fetch.Row, spec SummarySpec) ([]fetch.Row, Summary) {
	var sum Summary
	c := newCoercer(spec.AmountField, spec.RevenueField, spec.CostField)

	out := rows
	if spec.AmountField != "" {
		out = runningSum(rows, spec.AmountField, spec.RunningField, c.pass(spec.AmountField))
		if spec.CategoryField != "" {
			totals, total := categoryTotals(rows, spec.CategoryField, spec.AmountField, c.pass(spec.AmountField))
			sum.Total = total
			sum.Categories = shares(totals, total)
		} else {
			sum.Total = fieldTotal(rows, spec.AmountField, c.pass(spec.AmountField))
		}
	}
	if spec.RevenueField != "" && spec.CostField != "" {
		sum.Revenue = fieldTotal(rows, spec.RevenueField, c.pass(spec.RevenueField))
		sum.Costs = fieldTotal(rows, spec.CostField, c.pass(spec.CostField))
		sum.Profit = sum.Revenue.Sub(sum.Costs)
		sum.ProfitMargin = ProfitMargin(sum.Revenue, sum.Costs)
	}

	sum.Malformed = c.malformed
	e.report(c)
	return out, sum
}

// PercentageBreakdown returns 100*amount/total per category, rounded to one decimal.
// When total is zero every percentage is zero.
func PercentageBreakdown(totals map[string]decimal.Decimal, total decimal.Decimal) map[string]decimal.Decimal {
	pcts := make(map[string]decimal.Decimal, len(totals))
	for category, amount := range totals {
		pcts[category] = percent(amount, total)
	}
	return pcts
}

// ProfitMargin returns 100*(revenue-costs)/revenue, or zero when revenue is zero.
func ProfitMargin(revenue, costs decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return revenue.Sub(costs).Mul(hundred).Div(revenue)
}

func (e *Engine) report(c *coercer) {
	if e.logger == nil || c.malformed == 0 {
		return
	}
	e.logger.Warn("coerced malformed amounts to zero", core.ErrMalformedRow, map[string]interface{}{
		"fields": c.fields,
		"count":  c.malformed,
		"sample": c.sample,
	})
}

func runningSum(rows []fetch.Row, amountField, sumField string, c *coercer) []fetch.Row {
	if sumField == "" {
		sumField = DefaultRunningField
	}
	out := make([]fetch.Row, len(rows))
	acc := decimal.Zero
	for i, row := range rows {
		acc = acc.Add(c.amount(row, amountField))
		annotated := row.Clone()
		annotated[sumField] = acc
		out[i] = annotated
	}
	return out
}

func categoryTotals(rows []fetch.Row, categoryField, amountField string, c *coercer) (map[string]decimal.Decimal, decimal.Decimal) {
	totals := make(map[string]decimal.Decimal)
	grand := decimal.Zero
	for _, row := range rows {
		amount := c.amount(row, amountField)
		category := row.String(categoryField)
		totals[category] = totals[category].Add(amount)
		grand = grand.Add(amount)
	}
	return totals, grand
}

func fieldTotal(rows []fetch.Row, field string, c *coercer) decimal.Decimal {
	acc := decimal.Zero
	for _, row := range rows {
		acc = acc.Add(c.amount(row, field))
	}
	return acc
}

// shares orders categories by amount, largest first, then by name.
func shares(totals map[string]decimal.Decimal, total decimal.Decimal) []CategoryShare {
	out := make([]CategoryShare, 0, len(totals))
	for category, amount := range totals {
		out = append(out, CategoryShare{Category: category, Amount: amount, Percent: percent(amount, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func percent(amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(hundred).Div(total).Round(1)
}
