package inmemdb

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/fetch"
	"github.com/trezcool/ushauri/core/listing"
)

type listRepository struct {
	db *DB
}

func NewListRepository(db *DB) listing.Repository {
	return &listRepository{db: db}
}

func (repo *listRepository) Lists() []string {
	return repo.db.Lists()
}

func (repo *listRepository) FilterRows(list string, filter listing.QueryFilter) ([]fetch.Row, error) {
	lt, ok := repo.db.list(list)
	if !ok {
		return nil, listing.ErrNotFound
	}
	lt.mutex.RLock()
	defer lt.mutex.RUnlock()

	match, err := lt.matcher(filter)
	if err != nil {
		return nil, err
	}
	rows := make([]fetch.Row, 0, len(lt.Rows))
	for _, row := range lt.Rows {
		if match(row) {
			rows = append(rows, row.Clone())
		}
	}

	ords := filter.Orderings
	if len(ords) == 0 {
		ords = core.ParseOrderings(lt.Ordering)
	}
	if len(ords) > 0 {
		sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j], ords) })
	}
	return rows, nil
}

// matcher builds the predicate applying filter's fields with AND semantics.
func (lt *listTable) matcher(filter listing.QueryFilter) (func(fetch.Row) bool, error) {
	var preds []func(fetch.Row) bool

	if search := strings.ToLower(filter.Search); search != "" {
		preds = append(preds, func(row fetch.Row) bool {
			for _, field := range lt.Search {
				if strings.Contains(strings.ToLower(row.String(field)), search) {
					return true
				}
			}
			return false
		})
	}

	for param, value := range filter.Equals {
		field, ok := lt.Equals[param]
		if !ok {
			continue // unknown parameters are ignored
		}
		value := value
		preds = append(preds, func(row fetch.Row) bool { return row.String(field) == value })
	}

	if lt.Amount != "" {
		for _, bound := range []struct {
			val string
			ok  func(cmp int) bool
		}{
			{filter.AmountMin, func(cmp int) bool { return cmp >= 0 }},
			{filter.AmountMax, func(cmp int) bool { return cmp <= 0 }},
		} {
			if bound.val == "" {
				continue
			}
			limit, err := decimal.NewFromString(bound.val)
			if err != nil {
				return nil, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "invalid amount " + bound.val})
			}
			ok := bound.ok
			preds = append(preds, func(row fetch.Row) bool {
				amount, valid := aggregate.ToDecimal(row[lt.Amount])
				return valid && ok(amount.Cmp(limit))
			})
		}
	}

	if lt.Date != "" && (filter.Year != "" || filter.Month != "") {
		year, month := filter.Year, atoi(filter.Month)
		preds = append(preds, func(row fetch.Row) bool {
			parts := strings.SplitN(row.String(lt.Date), "-", 3)
			if len(parts) < 2 {
				return false
			}
			return (year == "" || parts[0] == year) && (month == 0 || atoi(parts[1]) == month)
		})
	}

	return func(row fetch.Row) bool {
		for _, pred := range preds {
			if !pred(row) {
				return false
			}
		}
		return true
	}, nil
}

// less compares rows on each ordering in turn. Numeric values compare as numbers, anything else as text.
func less(a, b fetch.Row, ords []core.Ordering) bool {
	for _, ord := range ords {
		cmp := compare(a[ord.Field], b[ord.Field])
		if cmp == 0 {
			continue
		}
		if ord.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func compare(a, b interface{}) int {
	da, okA := aggregate.ToDecimal(a)
	db, okB := aggregate.ToDecimal(b)
	if okA && okB {
		return da.Cmp(db)
	}
	sa, sb := fetch.Row{"v": a}.String("v"), fetch.Row{"v": b}.String("v")
	return strings.Compare(sa, sb)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
