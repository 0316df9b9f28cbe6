package resource

import "github.com/trezcool/ushauri/core/aggregate"

// Shared fields are read by every time-scoped table and survive tab switches.
const (
	YearField  = "year"
	MonthField = "month"
)

// DefaultPreserved are the fields kept when a dashboard clears or switches tabs.
var DefaultPreserved = []string{YearField, MonthField}

var (
	year  = Field{Query: YearField, Param: "year"}
	month = Field{Query: MonthField, Param: "month"}
)

// Dashboard lists the advising dashboard's tables.
var Dashboard = Catalogue{
	"advisors": {
		Key:           "advisors",
		Title:         "Advisors",
		Path:          "/advisors/",
		Page:          Field{Query: "advisors_page", Param: "page"},
		PageSizeParam: "page_size",
		Ordering:      "advisor_ordering",
		Filters: []Field{
			{Query: "advisor_search", Param: "search"},
			{Query: "advisor_active", Param: "is_active"},
			{Query: "advisor_ordering", Param: "ordering"},
		},
		Columns: []string{"id", "name", "phone", "students_count", "is_active"},
	},
	"students": {
		Key:           "students",
		Title:         "Advisor students",
		Path:          "/accounting/advisor-students/",
		Page:          Field{Query: "students_page", Param: "page"},
		PageSizeParam: "page_size",
		Ordering:      "student_ordering",
		Filters: []Field{
			{Query: "student_search", Param: "search"},
			{Query: "student_advisor", Param: "advisor"},
			{Query: "student_status", Param: "status"},
			{Query: "student_ordering", Param: "ordering"},
			year,
			month,
		},
		Columns: []string{"id", "name", "advisor", "status", "paid_amount", "running_total"},
		Summary: aggregate.SummarySpec{AmountField: "paid_amount", CategoryField: "status"},
	},
	"expenses": {
		Key:           "expenses",
		Title:         "Extra expenses",
		Path:          "/accounting/extra-expenses/",
		Page:          Field{Query: "expenses_page", Param: "page"},
		PageSizeParam: "page_size",
		Ordering:      "expense_ordering",
		Filters: []Field{
			{Query: "expense_search", Param: "search"},
			{Query: "expense_category", Param: "category"},
			{Query: "expense_amount_min", Param: "amount_min"},
			{Query: "expense_amount_max", Param: "amount_max"},
			{Query: "expense_ordering", Param: "ordering"},
			year,
			month,
		},
		Columns: []string{"date", "title", "category", "amount", "running_total"},
		Summary: aggregate.SummarySpec{AmountField: "amount", CategoryField: "category"},
	},
	"records": {
		Key:           "records",
		Title:         "Financial records",
		Path:          "/accounting/financial-records/",
		Page:          Field{Query: "records_page", Param: "page"},
		PageSizeParam: "page_size",
		Ordering:      "record_ordering",
		Filters: []Field{
			{Query: "record_search", Param: "search"},
			{Query: "record_ordering", Param: "ordering"},
			year,
			month,
		},
		Columns: []string{"date", "description", "income", "expense", "cumulative_income"},
		Summary: aggregate.SummarySpec{
			AmountField:  "income",
			RunningField: "cumulative_income",
			RevenueField: "income",
			CostField:    "expense",
		},
	},
	"cancellations": {
		Key:           "cancellations",
		Title:         "Cancellations",
		Path:          "/supervision/cancellations/",
		Page:          Field{Query: "cancellations_page", Param: "page"},
		PageSizeParam: "page_size",
		Ordering:      "cancellation_ordering",
		Filters: []Field{
			{Query: "cancellation_search", Param: "search"},
			{Query: "cancellation_reason", Param: "reason"},
			{Query: "cancellation_ordering", Param: "ordering"},
			year,
			month,
		},
		Columns: []string{"date", "student", "reason", "refund_amount", "running_total"},
		Summary: aggregate.SummarySpec{AmountField: "refund_amount", CategoryField: "reason"},
	},
}
