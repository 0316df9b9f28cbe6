// Package resource describes the paged lists of the advising dashboard: where each lives on the API and
// how its URL query fields map to API parameters.
package resource

import (
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/fetch"
	"github.com/trezcool/ushauri/core/querystate"
)

type (
	// Field maps a URL query field to the API parameter it is sent as.
	// URL fields are scoped per resource (expense_search) so tables sharing a page never collide;
	// API parameters are not (search).
	Field struct {
		Query string `json:"query" validate:"required,queryfield"`
		Param string `json:"param" validate:"required,queryfield"`
	}

	Resource struct {
		Key           string                `json:"key" validate:"required,queryfield"`
		Title         string                `json:"title"`
		Path          string                `json:"path" validate:"required,startswith=/"`
		Page          Field                 `json:"page"`
		PageSizeParam string                `json:"page_size_param" validate:"omitempty,queryfield"`
		Ordering      string                `json:"ordering" validate:"omitempty,queryfield"` // query field holding the sort
		Filters       []Field               `json:"filters" validate:"dive"`
		Columns       []string              `json:"columns"`
		Summary       aggregate.SummarySpec `json:"summary"`
	}
)

// QueryFields returns the URL fields the resource reads: its filters then its page field.
func (r Resource) QueryFields() []string {
	names := make([]string, 0, len(r.Filters)+1)
	for _, f := range r.Filters {
		names = append(names, f.Query)
	}
	return append(names, r.Page.Query)
}

// Filter returns the filter stored under the URL field name.
func (r Resource) Filter(name string) (Field, bool) {
	for _, f := range r.Filters {
		if f.Query == name {
			return f, true
		}
	}
	return Field{}, false
}

// PageOf returns the page number held in state. An absent or invalid page is page 1.
func (r Resource) PageOf(state querystate.State) int {
	page, err := strconv.Atoi(state.Get(r.Page.Query))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Request builds the API request for state. The page is always sent; empty filters never are.
func (r Resource) Request(state querystate.State, pageSize int) fetch.Request {
	var params querystate.State
	params.Set(r.Page.Param, strconv.Itoa(r.PageOf(state)))
	if r.PageSizeParam != "" && pageSize > 0 {
		params.Set(r.PageSizeParam, strconv.Itoa(pageSize))
	}
	for _, f := range r.Filters {
		if v := core.CleanString(state.Get(f.Query)); v != "" {
			params.Set(f.Param, v)
		}
	}
	return fetch.Request{Resource: r.Key, Path: r.Path, Params: params}
}

// Validate checks the definition's tags, and that no two filters share a URL field or an API parameter.
func (r Resource) Validate(validate *validator.Validate) error {
	if err := validate.Struct(r); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return vErrs
		}
		return errors.Wrap(err, "validating resource")
	}

	queries := map[string]bool{r.Page.Query: true}
	params := map[string]bool{r.Page.Param: true}
	if r.PageSizeParam != "" {
		params[r.PageSizeParam] = true
	}
	for _, f := range r.Filters {
		if queries[f.Query] {
			return core.NewValidationError(nil, core.FieldError{Field: "filters", Error: "duplicate query field " + f.Query})
		}
		if params[f.Param] {
			return core.NewValidationError(nil, core.FieldError{Field: "filters", Error: "duplicate api parameter " + f.Param})
		}
		queries[f.Query] = true
		params[f.Param] = true
	}
	if r.Ordering != "" && !queries[r.Ordering] {
		return core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "not a filter: " + r.Ordering})
	}
	return nil
}

// Catalogue is a set of resources keyed by Key.
type Catalogue map[string]Resource

// Lookup returns the resource registered under key.
func (c Catalogue) Lookup(key string) (Resource, error) {
	r, ok := c[key]
	if !ok {
		return Resource{}, errors.Errorf("unknown resource %q", key)
	}
	return r, nil
}

// Keys returns the catalogue's keys sorted.
func (c Catalogue) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate validates every resource, returning translated field errors prefixed with the resource key.
func (c Catalogue) Validate() error {
	validate, translator := core.NewValidator()
	for _, key := range c.Keys() {
		r := c[key]
		if r.Key != key {
			return core.NewValidationError(nil, core.FieldError{Field: key + ".key", Error: "does not match catalogue key"})
		}
		err := r.Validate(validate)
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			err = core.TranslateValidation(vErrs, translator)
		}
		if vErr, ok := err.(*core.ValidationError); ok {
			for i := range vErr.Fields {
				vErr.Fields[i].Field = key + "." + vErr.Fields[i].Field
			}
			return vErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
