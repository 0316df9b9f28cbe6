// Package listing serves paged lists of records, the way the dashboard's backend does.
package listing

import (
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core/fetch"
)

// DefaultPageSize matches the backend's default pagination.
const DefaultPageSize = 10

var (
	// errors
	ErrNotFound    = errors.New("list not found")
	ErrInvalidPage = errors.New("invalid page")
)

type (
	Repository interface {
		Lists() []string
		// FilterRows returns every row of list matching filter, ordered by filter.Orderings or
		// the list's default ordering. Pagination fields are ignored.
		FilterRows(list string, filter QueryFilter) ([]fetch.Row, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Lists() []string {
	return svc.repo.Lists()
}

// Query returns one page of list. Page 0 is page 1; a page past the last one is ErrInvalidPage,
// except page 1 of an empty list.
func (svc *Service) Query(list string, filter QueryFilter) (Page, error) {
	rows, err := svc.repo.FilterRows(list, filter)
	if err != nil {
		return Page{}, err
	}

	page, size := filter.Page, filter.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	start := (page - 1) * size
	if start > 0 && start >= len(rows) {
		return Page{}, ErrInvalidPage
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}

	results := make([]fetch.Row, end-start)
	copy(results, rows[start:end])
	return Page{Count: len(rows), Results: results}, nil
}
