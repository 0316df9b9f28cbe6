package inmemdb

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/trezcool/ushauri/core/fetch"
)

//go:embed fixtures.jsonc
var fixtures []byte

type (
	DB struct {
		lists map[string]*listTable
		mutex sync.RWMutex
	}

	// listTable is one paged list and the row fields its query parameters act on.
	listTable struct {
		Search   []string          `json:"search"`   // fields matched by `search`
		Equals   map[string]string `json:"equals"`   // parameter -> field matched exactly
		Amount   string            `json:"amount"`   // field bounded by `amount_min` and `amount_max`
		Date     string            `json:"date"`     // `YYYY-MM-DD` field matched by `year` and `month`
		Ordering string            `json:"ordering"` // default ordering
		Rows     []fetch.Row       `json:"rows"`

		mutex sync.RWMutex
	}
)

// Open loads the bundled fixtures.
func Open() (*DB, error) {
	return Load(fixtures)
}

// Load reads lists from a JSON document, comments and trailing commas allowed.
func Load(data []byte) (*DB, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing fixtures")
	}

	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	lists := make(map[string]*listTable)
	if err = dec.Decode(&lists); err != nil {
		return nil, errors.Wrap(err, "decoding fixtures")
	}
	for name, lt := range lists {
		if lt == nil {
			return nil, errors.Errorf("list %q is empty", name)
		}
		if lt.Rows == nil {
			lt.Rows = []fetch.Row{}
		}
	}
	return &DB{lists: lists}, nil
}

func (db *DB) Lists() []string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	names := make([]string, 0, len(db.lists))
	for name := range db.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Insert appends rows to list, creating it with no filterable fields when missing.
func (db *DB) Insert(list string, rows ...fetch.Row) {
	db.mutex.Lock()
	lt, ok := db.lists[list]
	if !ok {
		lt = &listTable{Rows: []fetch.Row{}}
		db.lists[list] = lt
	}
	db.mutex.Unlock()

	lt.mutex.Lock()
	defer lt.mutex.Unlock()
	lt.Rows = append(lt.Rows, rows...)
}

func (db *DB) list(name string) (*listTable, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	lt, ok := db.lists[name]
	return lt, ok
}
