package aggregate

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trezcool/ushauri/core/fetch"
)

// digits maps Persian and Arabic-Indic digits and separators to their ASCII forms.
var digits = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4", "۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٫", ".", // arabic decimal separator
	"٬", "", // arabic thousands separator
	",", "",
	" ", "",
	" ", "",
)

// ToDecimal converts an amount as found in a row to a decimal.
// ok is false when v is missing or not numeric; the returned value is then zero.
func ToDecimal(v interface{}) (d decimal.Decimal, ok bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case json.Number:
		return fromString(t.String())
	case string:
		return fromString(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case uint:
		return decimal.NewFromInt(int64(t)), true
	case uint32:
		return decimal.NewFromInt(int64(t)), true
	default:
		return decimal.Zero, false
	}
}

func fromString(s string) (decimal.Decimal, bool) {
	s = digits.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// coercer reads amounts from rows, counting the values it had to replace with zero.
type coercer struct {
	fields    []string
	malformed int
	sample    interface{}
	counted   map[string]bool
}

func newCoercer(fields ...string) *coercer {
	c := &coercer{counted: make(map[string]bool)}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f != "" && !seen[f] {
			seen[f] = true
			c.fields = append(c.fields, f)
		}
	}
	return c
}

// pass returns the coercer to read field with: c on the first pass over field,
// a coercer whose counts are never reported on later ones.
func (c *coercer) pass(field string) *coercer {
	if c.counted[field] {
		return &coercer{fields: c.fields}
	}
	c.counted[field] = true
	return c
}

func (c *coercer) amount(row fetch.Row, field string) decimal.Decimal {
	v := row[field]
	d, ok := ToDecimal(v)
	if !ok {
		if c.malformed == 0 {
			c.sample = v
		}
		c.malformed++
	}
	return d
}
