// Package pagedlist implements the controller behind a filtered, paginated table whose filters,
// sort and page live in the shareable URL.
//
// A controller reads its fields from a querystate.Store, debounces filter edits before committing them to the
// store, loads the matching page through a fetch.Fetcher and publishes Views. Only the response to the most
// recently issued request is ever applied.
package pagedlist

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/aggregate"
	"github.com/trezcool/ushauri/core/debounce"
	"github.com/trezcool/ushauri/core/fetch"
	"github.com/trezcool/ushauri/core/querystate"
	"github.com/trezcool/ushauri/core/resource"
)

// DefaultPageSize is the number of rows per page the backend serves when not told otherwise.
const DefaultPageSize = 10

// maxSuggestionDistance bounds how far a mistyped field may be from the suggested one.
const maxSuggestionDistance = 3

type (
	Options struct {
		Resource resource.Resource `validate:"-"`
		Store    *querystate.Store `validate:"required"`
		Fetcher  *fetch.Fetcher    `validate:"required"`

		// Scheduler and Delay drive the filter debouncing; nil and 0 mean real timers and debounce.DefaultDelay.
		Scheduler debounce.Scheduler
		Delay     time.Duration `validate:"gte=0"`

		PageSize  int `validate:"gte=0"`
		Preserved []string

		// ClearRowsOnError empties the table when a load fails instead of keeping the last rows.
		ClearRowsOnError bool

		Engine *aggregate.Engine
		Logger core.Logger

		// Context bounds every load: once it is cancelled loads end Cancelled, past its deadline they fail.
		Context context.Context
	}

	// Controller is the PagedListController of one resource. It is safe for concurrent use.
	Controller struct {
		res       resource.Resource
		store     *querystate.Store
		fetcher   *fetch.Fetcher
		debouncer *debounce.Debouncer
		engine    *aggregate.Engine
		logger    core.Logger

		pageSize         int
		preserved        map[string]bool
		clearRowsOnError bool

		ctx    context.Context
		cancel context.CancelFunc

		mu          sync.Mutex
		view        View
		loaded      querystate.State // the fields of the last issued load
		current     *fetch.Token
		started     bool
		closed      bool
		unsubscribe func()
		unlinkPage  func()
		updates     chan View
	}
)

// New validates opts and returns an idle controller. Call Start to mount it.
func New(opts Options) (*Controller, error) {
	validate, translator := core.NewValidator()
	if err := validate.Struct(opts); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return nil, core.TranslateValidation(vErrs, translator)
		}
		return nil, errors.Wrap(err, "validating options")
	}
	if err := opts.Resource.Validate(validate); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return nil, core.TranslateValidation(vErrs, translator)
		}
		return nil, err
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	delay := opts.Delay
	if delay == 0 {
		delay = debounce.DefaultDelay
	}
	engine := opts.Engine
	if engine == nil {
		engine = aggregate.New(opts.Logger)
	}
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	c := &Controller{
		res:              opts.Resource,
		store:            opts.Store,
		fetcher:          opts.Fetcher,
		engine:           engine,
		logger:           opts.Logger,
		pageSize:         pageSize,
		preserved:        make(map[string]bool, len(opts.Preserved)),
		clearRowsOnError: opts.ClearRowsOnError,
		ctx:              ctx,
		cancel:           cancel,
		updates:          make(chan View, 1),
	}
	for _, name := range opts.Preserved {
		c.preserved[name] = true
	}
	c.debouncer = debounce.New(delay, opts.Scheduler, c.commit)
	c.view = View{Resource: c.res.Key, Status: Idle, Page: 1, PageSize: pageSize}
	return c, nil
}

// Resource returns the resource the controller lists.
func (c *Controller) Resource() resource.Resource {
	return c.res
}

// Start subscribes to the store and issues the first load from the fields currently in the URL.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.unlinkPage = c.store.ResetPageOn(c.res.Page.Query, c.res.QueryFields()...)
	c.unsubscribe = c.store.Subscribe(func(_, _ querystate.State) { c.reload(false) })
	c.mu.Unlock()

	c.reload(true)
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

// Updates delivers published views. The channel holds at most the latest view: a slow reader skips
// intermediate ones. It is closed by Close.
func (c *Controller) Updates() <-chan View {
	return c.updates
}

// SetFilter schedules a debounced edit of the filter stored under the URL field name.
// Committing the edit resets the page to 1.
func (c *Controller) SetFilter(name, value string) error {
	if name == c.res.Page.Query {
		return core.NewValidationError(nil, core.FieldError{Field: name, Error: "use SetPage to change pages"})
	}
	if _, ok := c.res.Filter(name); !ok {
		msg := fmt.Sprintf("unknown filter for %s", c.res.Key)
		if s := c.suggest(name); s != "" {
			msg = fmt.Sprintf("%s, did you mean %q?", msg, s)
		}
		return core.NewValidationError(nil, core.FieldError{Field: name, Error: msg})
	}
	c.debouncer.OnEdit(name, value)
	return nil
}

// Pending returns the edit of name still waiting for its debounce delay.
func (c *Controller) Pending(name string) (string, bool) {
	return c.debouncer.Pending(name)
}

// Flush commits the pending filter edits right away.
func (c *Controller) Flush() {
	c.debouncer.Flush()
}

// SetPage moves to page n. It is a no-op returning false for n outside [1, TotalPages],
// which includes every n before the first successful load.
func (c *Controller) SetPage(n int) bool {
	c.mu.Lock()
	ok := !c.closed && n >= 1 && n <= c.view.TotalPages
	c.mu.Unlock()
	if !ok {
		return false
	}

	val := strconv.Itoa(n)
	if n == 1 {
		val = "" // page 1 is the absent page
	}
	c.store.Write(querystate.New(c.res.Page.Query, val))
	return true
}

// NextPage moves one page forward.
func (c *Controller) NextPage() bool {
	return c.SetPage(c.View().Page + 1)
}

// PrevPage moves one page back.
func (c *Controller) PrevPage() bool {
	return c.SetPage(c.View().Page - 1)
}

// Sort toggles the ordering on field: ascending first, then descending.
func (c *Controller) Sort(field string) error {
	if c.res.Ordering == "" {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: c.res.Key + " cannot be sorted"})
	}
	current := c.store.Read(c.res.Ordering).Get(c.res.Ordering)
	c.debouncer.Cancel(c.res.Ordering)
	c.store.Write(querystate.New(c.res.Ordering, core.ToggleOrdering(current, field)))
	return nil
}

// ClearAll drops pending edits and removes the controller's fields from the URL, except the preserved ones.
func (c *Controller) ClearAll() {
	var names []string
	for _, name := range c.res.QueryFields() {
		if !c.preserved[name] {
			names = append(names, name)
		}
	}
	c.debouncer.Cancel(names...)
	c.store.Clear(names...)
}

// Refresh reloads the current page even if the URL did not change.
func (c *Controller) Refresh() {
	c.reload(true)
}

// Close tears the controller down: pending edits are dropped, the load in flight is cancelled
// and the Updates channel is closed. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	tok := c.current
	c.current = nil
	if c.view.Loading {
		c.view.Loading = false
		c.view.Status = Cancelled
		c.publishLocked()
	}
	unsubscribe, unlinkPage := c.unsubscribe, c.unlinkPage
	close(c.updates)
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
		unlinkPage()
	}
	c.debouncer.Close()
	if tok != nil {
		tok.Cancel()
	}
	c.cancel()
}

func (c *Controller) commit(field, value string) {
	c.store.Replace(querystate.New(field, value))
}

// reload issues a load when the controller's fields differ from the last issued load, or always when forced.
func (c *Controller) reload(force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.closed {
		return
	}

	state := c.store.Read(c.res.QueryFields()...)
	if !force && state.Equal(c.loaded) {
		return
	}
	if !samePageSet(state, c.loaded, c.res.Page.Query) {
		// the page count of the previous query does not bound the new one
		c.view.TotalPages = 0
	}
	c.loaded = state

	req := c.res.Request(state, c.pageSize)
	c.current = c.fetcher.Fetch(c.ctx, req, c.apply)
	if c.logger != nil {
		c.logger.Debug("loading page", map[string]interface{}{
			"resource": c.res.Key,
			"token":    c.current.ID(),
			"query":    req.Params.Encode(),
		})
	}
	c.view.Status = Loading
	c.view.Loading = true
	c.view.Page = c.res.PageOf(state)
	c.view.State = state
	c.publishLocked()
}

// samePageSet reports whether a and b only differ in their page field.
func samePageSet(a, b querystate.State, page string) bool {
	a, b = a.Clone(), b.Clone()
	a.Del(page)
	b.Del(page)
	return a.Equal(b)
}

// apply installs the result of tok unless a later load superseded it.
func (c *Controller) apply(tok *fetch.Token, batch fetch.RowBatch, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || tok != c.current {
		return
	}
	c.current = nil
	c.view.Loading = false

	if core.IsCancelled(err) {
		// the controller's context ended; the rows on display stay
		c.view.Status = Cancelled
		c.view.Err = nil
		c.publishLocked()
		return
	}
	if err != nil {
		c.view.Status = Failed
		c.view.Err = err
		if c.clearRowsOnError {
			c.view.Rows = nil
			c.view.Count = 0
			c.view.TotalPages = 0
			c.view.Summary = aggregate.Summary{}
		}
		c.publishLocked()
		return
	}

	rows, summary := c.engine.Summarize(batch.Rows, c.res.Summary)
	c.view.Status = Success
	c.view.Err = nil
	c.view.Rows = rows
	c.view.Count = batch.Count
	c.view.TotalPages = totalPages(batch.Count, c.pageSize)
	c.view.Summary = summary
	c.publishLocked()
}

// publishLocked replaces whatever view is waiting in the updates channel with the current one.
func (c *Controller) publishLocked() {
	c.view.Version++
	select {
	case <-c.updates:
	default:
	}
	c.updates <- c.view.clone()
}

func (c *Controller) suggest(name string) string {
	best, bestDist := "", maxSuggestionDistance+1
	for _, candidate := range c.res.QueryFields() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
