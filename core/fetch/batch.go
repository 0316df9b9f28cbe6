package fetch

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Row is one record of a paged list. Rows are opaque except for the fields aggregation reads.
	Row map[string]interface{}

	// RowBatch is the page of records returned for one query, plus the count of all matching records.
	RowBatch struct {
		Count int   `json:"count"`
		Rows  []Row `json:"results"`
	}
)

// Clone returns a shallow copy of the row, safe to annotate.
func (r Row) Clone() Row {
	c := make(Row, len(r)+1)
	for k, v := range r {
		c[k] = v
	}
	return c
}

// String returns the field as text; numbers keep their JSON representation.
func (r Row) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

// decodeBatch reads a `{count, results}` page. A bare JSON array is accepted as an unpaged list.
// Numbers are kept as json.Number so amounts do not lose precision.
func decodeBatch(body []byte) (RowBatch, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return RowBatch{}, errors.New("empty response body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if body[0] == '[' {
		var rows []Row
		if err := dec.Decode(&rows); err != nil {
			return RowBatch{}, errors.Wrap(err, "decoding list")
		}
		return RowBatch{Count: len(rows), Rows: nonNil(rows)}, nil
	}

	var page struct {
		Count   *int  `json:"count"`
		Results []Row `json:"results"`
	}
	if err := dec.Decode(&page); err != nil {
		return RowBatch{}, errors.Wrap(err, "decoding page")
	}
	batch := RowBatch{Rows: nonNil(page.Results)}
	if page.Count != nil {
		batch.Count = *page.Count
	} else {
		batch.Count = len(batch.Rows)
	}
	return batch, nil
}

func nonNil(rows []Row) []Row {
	if rows == nil {
		return []Row{}
	}
	return rows
}
