package listing

import (
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/fetch"
)

// params read by QueryFilter itself; any other query parameter is an equality filter.
var reservedParams = map[string]bool{
	"search": true, "year": true, "month": true, "amount_min": true, "amount_max": true,
	"page": true, "page_size": true, "ordering": true,
}

// QueryFilter is a paged-list query as sent by the dashboard.
type QueryFilter struct {
	Search    string `query:"search" json:"search"`
	Year      string `query:"year" json:"year" validate:"omitempty,numeric,len=4"`
	Month     string `query:"month" json:"month" validate:"omitempty,numeric,min=1,max=2"`
	AmountMin string `query:"amount_min" json:"amount_min" validate:"omitempty,numeric"`
	AmountMax string `query:"amount_max" json:"amount_max" validate:"omitempty,numeric"`
	Page      int    `query:"page" json:"page" validate:"gte=0"`
	PageSize  int    `query:"page_size" json:"page_size" validate:"gte=0,lte=100"`

	// Equals holds the remaining parameters, matched exactly against the row fields a table declares.
	Equals    map[string]string `query:"-" json:"-"`
	Orderings []core.Ordering   `query:"-" json:"-"`
}

// SetExtra fills Equals and Orderings from the raw query.
func (qf *QueryFilter) SetExtra(params url.Values) {
	if ord := params.Get("ordering"); ord != "" {
		qf.Orderings = core.ParseOrderings(ord)
	}
	for k := range params {
		if reservedParams[k] {
			continue
		}
		if v := core.CleanString(params.Get(k)); v != "" {
			if qf.Equals == nil {
				qf.Equals = make(map[string]string)
			}
			qf.Equals[k] = v
		}
	}
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Year = core.CleanString(qf.Year)
	qf.Month = core.CleanString(qf.Month)
	qf.AmountMin = core.CleanString(qf.AmountMin)
	qf.AmountMax = core.CleanString(qf.AmountMax)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}

// Page is the `{count, results}` envelope of a paged list.
type Page struct {
	Count   int         `json:"count"`
	Results []fetch.Row `json:"results"`
}
