package core

import "strings"

// Ordering is one sort key of a paged list, rendered as `field` (ascending) or `-field` (descending).
type Ordering struct {
	Field     string
	Ascending bool
}

func (ord Ordering) String() string {
	if ord.Ascending {
		return ord.Field
	}
	return "-" + ord.Field
}

// ParseOrderings parses a comma separated ordering value such as `-date,amount`.
func ParseOrderings(val string) []Ordering {
	var ords []Ordering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ords = append(ords, Ordering{Field: field, Ascending: !descending})
	}
	return ords
}

// FormatOrderings is the inverse of ParseOrderings.
func FormatOrderings(ords []Ordering) string {
	parts := make([]string, 0, len(ords))
	for _, ord := range ords {
		parts = append(parts, ord.String())
	}
	return strings.Join(parts, ",")
}

// ToggleOrdering makes field the primary sort key, flipping its direction when it already is.
func ToggleOrdering(val, field string) string {
	ords := ParseOrderings(val)
	if len(ords) > 0 && ords[0].Field == field {
		ords[0].Ascending = !ords[0].Ascending
		return FormatOrderings(ords[:1])
	}
	return Ordering{Field: field, Ascending: true}.String()
}
