package pagedlist

import (
	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/fetch"
	"github.com/trezcool/ushauri/core/querystate"
)

// Status is the state of a controller's last load.
type Status int

const (
	Idle Status = iota
	Loading
	Success
	Cancelled // the controller was closed while loading
	Failed
)

var statusNames = map[Status]string{
	Idle:      "idle",
	Loading:   "loading",
	Success:   "success",
	Cancelled: "cancelled",
	Failed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// View is a snapshot of what a table displays.
// Rows and Summary come from the last successful load; Page and State from the last issued one.
type View struct {
	Resource   string
	Status     Status
	Loading    bool
	Err        error
	Rows       []fetch.Row
	Count      int
	Page       int
	PageSize   int
	TotalPages int
	Summary    aggregate.Summary
	State      querystate.State
	Version    uint64 // bumped on every published change
}

// HasNext reports whether a page follows the current one.
func (v View) HasNext() bool {
	return v.Page < v.TotalPages
}

// HasPrev reports whether a page precedes the current one.
func (v View) HasPrev() bool {
	return v.Page > 1 && v.TotalPages > 0
}

func (v View) clone() View {
	c := v
	if v.Rows != nil {
		c.Rows = append([]fetch.Row(nil), v.Rows...)
	}
	c.State = v.State.Clone()
	return c
}

// totalPages is ceil(count/pageSize).
func totalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
