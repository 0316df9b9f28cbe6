package pagedlist_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/debounce"
	"github.com/trezcool/ushauri/core/fetch"
	. "github.com/trezcool/ushauri/core/pagedlist"
	"github.com/trezcool/ushauri/core/querystate"
	"github.com/trezcool/ushauri/core/resource"
	"github.com/trezcool/ushauri/tests"
)

const dashboardURL = "https://ushauri.test/accounting"

type harness struct {
	store   *querystate.Store
	hist    *querystate.MemoryHistory
	backend *testutil.Backend
	sched   *testutil.Scheduler
	logger  *testutil.Logger
	fetcher *fetch.Fetcher
}

func newHarness(t *testing.T, query string) *harness {
	t.Helper()
	rawURL := dashboardURL
	if query != "" {
		rawURL += "?" + query
	}
	h := &harness{
		hist:    querystate.NewMemoryHistory(rawURL),
		backend: testutil.NewBackend(),
		sched:   testutil.NewScheduler(),
		logger:  new(testutil.Logger),
	}
	var err error
	h.store, err = querystate.NewStore(rawURL, h.hist)
	require.NoError(t, err)
	h.fetcher = fetch.New(fetch.Options{BaseURL: "http://api.test/v1", Client: h.backend, Logger: h.logger})
	t.Cleanup(h.fetcher.Close)
	return h
}

// start mounts a controller on key. It is closed when the test ends.
func (h *harness) start(t *testing.T, key string, opts ...func(*Options)) *Controller {
	t.Helper()
	res, err := resource.Dashboard.Lookup(key)
	require.NoError(t, err)

	o := Options{
		Resource:  res,
		Store:     h.store,
		Fetcher:   h.fetcher,
		Scheduler: h.sched,
		Delay:     debounce.DefaultDelay,
		Preserved: resource.DefaultPreserved,
		Logger:    h.logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	c.Start()
	return c
}

func waitFor(t *testing.T, c *Controller, cond func(View) bool, msg string) View {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.View()) }, 2*time.Second, 5*time.Millisecond, msg)
	return c.View()
}

func settled(v View) bool {
	return !v.Loading && v.Status != Idle
}

func ids(rows []fetch.Row) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.String("id")
	}
	return out
}

func TestController_StartLoadsFromURL(t *testing.T) {
	h := newHarness(t, "year=1403&month=7&expense_search=x&expenses_page=2&student_search=y")
	c := h.start(t, "expenses")

	call := h.backend.Next(t)
	assert.Equal(t, "http://api.test/v1/accounting/extra-expenses/", call.Request.BaseURL)
	assert.Equal(t, map[string]string{
		"page":      "2",
		"page_size": "10",
		"search":    "x",
		"year":      "1403",
		"month":     "7",
	}, call.Request.QueryParams)

	loading := c.View()
	assert.True(t, loading.Loading)
	assert.Equal(t, Loading, loading.Status)
	assert.Equal(t, 2, loading.Page)

	call.RespondPage(25, testutil.Rows(11, 10, "1000")...)
	v := waitFor(t, c, settled, "load never settled")
	assert.Equal(t, Success, v.Status)
	assert.NoError(t, v.Err)
	assert.Equal(t, 25, v.Count)
	assert.Equal(t, 3, v.TotalPages)
	assert.Equal(t, 2, v.Page)
	assert.Len(t, v.Rows, 10)
	assert.True(t, decimal.NewFromInt(10000).Equal(v.Summary.Total))
	assert.True(t, v.HasNext())
	assert.True(t, v.HasPrev())
}

func TestController_DebouncedSearchFiresOneRequest(t *testing.T) {
	h := newHarness(t, "year=1403&expenses_page=3")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(40, testutil.Rows(21, 10, 1)...)
	waitFor(t, c, settled, "initial load")
	histLen := h.hist.Len()

	require.NoError(t, c.SetFilter("expense_search", "علی"))
	h.sched.Advance(100 * time.Millisecond)
	require.NoError(t, c.SetFilter("expense_search", "علی ر"))
	h.backend.Idle(t, 20*time.Millisecond)

	h.sched.Advance(debounce.DefaultDelay)
	call := h.backend.Next(t)
	assert.Equal(t, "علی ر", call.Query("search"))
	assert.Equal(t, "1", call.Query("page"), "a filter change resets the page")
	h.backend.Idle(t, 50*time.Millisecond)

	st := h.store.Read()
	assert.Equal(t, "علی ر", st.Get("expense_search"))
	assert.False(t, st.Has("expenses_page"))
	assert.Equal(t, histLen, h.hist.Len(), "typing replaces the history entry")
}

func TestController_FlushCommitsImmediately(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(0)

	require.NoError(t, c.SetFilter("expense_category", "rent"))
	v, ok := c.Pending("expense_category")
	assert.True(t, ok)
	assert.Equal(t, "rent", v)

	c.Flush()
	assert.Equal(t, "rent", h.backend.Next(t).Query("category"))
	_, ok = c.Pending("expense_category")
	assert.False(t, ok)
}

func TestController_PageClickSupersedesInFlightLoad(t *testing.T) {
	h := newHarness(t, "")
	h.backend.IgnoreCancel = true
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(35, testutil.Rows(1, 10, 1)...)
	waitFor(t, c, settled, "initial load")

	c.Refresh()
	page1 := h.backend.Next(t)
	require.Equal(t, "1", page1.Query("page"))

	require.True(t, c.SetPage(2))
	page2 := h.backend.Next(t)
	require.Equal(t, "2", page2.Query("page"))
	assert.Equal(t, "2", h.store.Read().Get("expenses_page"), "a page-click is pushed to the URL")

	page2.RespondPage(35, testutil.Rows(11, 10, 1)...)
	waitFor(t, c, settled, "page 2 never loaded")

	page1.RespondPage(35, testutil.Rows(1, 10, 1)...)
	time.Sleep(30 * time.Millisecond)

	v := c.View()
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, "11", ids(v.Rows)[0], "the stale page-1 response is discarded")
}

func TestController_LatestIssuedWinsWhateverTheCompletionOrder(t *testing.T) {
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 4, 0, 3, 1},
		{4, 0, 1, 2, 3},
	}
	for _, order := range orders {
		h := newHarness(t, "")
		h.backend.IgnoreCancel = true
		c := h.start(t, "expenses")
		h.backend.Next(t).RespondPage(0)
		waitFor(t, c, settled, "initial load")

		calls := make([]*testutil.Call, 5)
		for i := range calls {
			require.NoError(t, c.SetFilter("expense_search", string(rune('a'+i))))
			c.Flush()
			calls[i] = h.backend.Next(t)
		}

		for _, i := range order {
			calls[i].RespondPage(1, map[string]interface{}{"id": i})
		}
		v := waitFor(t, c, func(v View) bool { return settled(v) && len(v.Rows) == 1 }, "last load never applied")
		time.Sleep(20 * time.Millisecond)
		v = c.View()
		assert.Equal(t, []string{"4"}, ids(v.Rows), "order %v", order)
		assert.Equal(t, "e", v.State.Get("expense_search"))
	}
}

func TestController_SetPageOutOfRangeIsNoop(t *testing.T) {
	h := newHarness(t, "expense_search=x")
	c := h.start(t, "expenses")
	call := h.backend.Next(t)

	assert.False(t, c.SetPage(1), "total pages are unknown before the first load")
	call.RespondPage(25, testutil.Rows(1, 10, 1)...)
	waitFor(t, c, settled, "initial load")

	before := h.store.URL()
	histLen := h.hist.Len()
	for _, n := range []int{-1, 0, 4, 100} {
		assert.False(t, c.SetPage(n), "SetPage(%d)", n)
	}
	assert.False(t, c.PrevPage())
	assert.Equal(t, before, h.store.URL())
	assert.Equal(t, histLen, h.hist.Len())
	h.backend.Idle(t, 20*time.Millisecond)

	assert.True(t, c.SetPage(3))
	assert.Equal(t, "3", h.backend.Next(t).Query("page"))
	assert.False(t, c.NextPage(), "already on the last page")
}

func TestController_SetPageOneRemovesPageField(t *testing.T) {
	h := newHarness(t, "expenses_page=2")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(25)
	waitFor(t, c, settled, "initial load")

	require.True(t, c.PrevPage())
	assert.False(t, h.store.Read().Has("expenses_page"))
	assert.Equal(t, "1", h.backend.Next(t).Query("page"))
}

func TestController_ClearAllKeepsPreservedFields(t *testing.T) {
	h := newHarness(t, "year=1403&month=7&expense_search=x")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(0)
	waitFor(t, c, settled, "initial load")

	require.NoError(t, c.SetFilter("expense_category", "rent"))
	c.ClearAll()
	assert.Equal(t, map[string]string{"year": "1403", "month": "7"}, h.store.Read().Map())
	assert.Equal(t, dashboardURL+"?year=1403&month=7", h.store.URL())

	call := h.backend.Next(t)
	assert.Empty(t, call.Query("search"))
	assert.Equal(t, "1403", call.Query("year"))

	h.sched.Advance(time.Hour)
	h.backend.Idle(t, 20*time.Millisecond)
	assert.False(t, h.store.Read().Has("expense_category"), "the pending edit was dropped")
}

func TestController_ErrorsSurface(t *testing.T) {
	for _, clearRows := range []bool{false, true} {
		h := newHarness(t, "")
		c := h.start(t, "expenses", func(o *Options) { o.ClearRowsOnError = clearRows })
		h.backend.Next(t).RespondPage(12, testutil.Rows(1, 10, 1)...)
		waitFor(t, c, settled, "initial load")

		c.Refresh()
		h.backend.Next(t).Respond(http.StatusInternalServerError, `{"error":"Internal Server Error"}`)
		v := waitFor(t, c, func(v View) bool { return v.Status == Failed }, "load never failed")

		var reqErr *core.RequestError
		require.True(t, errors.As(v.Err, &reqErr))
		assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
		assert.False(t, v.Loading)
		if clearRows {
			assert.Empty(t, v.Rows)
			assert.Zero(t, v.TotalPages)
		} else {
			assert.Len(t, v.Rows, 10, "previous rows stay displayed")
			assert.Equal(t, 2, v.TotalPages)
		}
		assert.NotEmpty(t, h.logger.Entries("error"))

		// the next successful load clears the error
		c.Refresh()
		h.backend.Next(t).RespondPage(0)
		v = waitFor(t, c, func(v View) bool { return v.Status == Success }, "reload never succeeded")
		assert.NoError(t, v.Err)
	}
}

func TestController_UnknownFilter(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(0)

	err := c.SetFilter("expense_serch", "x")
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "expense_serch", vErr.Fields[0].Field)
	assert.Contains(t, vErr.Fields[0].Error, `did you mean "expense_search"?`)

	assert.Error(t, c.SetFilter("expenses_page", "2"), "pages are set with SetPage")
	assert.Error(t, c.SetFilter("student_search", "x"), "fields of other tables are rejected")
	assert.Zero(t, h.sched.Pending())
}

func TestController_CloseCancelsEverything(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	call := h.backend.Next(t)

	require.NoError(t, c.SetFilter("expense_search", "x"))
	c.Close()

	v := c.View()
	assert.Equal(t, Cancelled, v.Status)
	assert.False(t, v.Loading)

	call.RespondPage(3, testutil.Rows(1, 3, 1)...)
	h.sched.Advance(time.Hour)
	h.backend.Idle(t, 30*time.Millisecond)
	assert.False(t, h.store.Read().Has("expense_search"), "no commit after close")
	assert.Empty(t, c.View().Rows)

	var last View
	for v := range c.Updates() {
		last = v
	}
	assert.Equal(t, Cancelled, last.Status)
	assert.Empty(t, h.logger.Entries("error"))

	c.Close() // idempotent
	assert.False(t, c.SetPage(1))
}

func TestController_ContextEndsTheLoad(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		h := newHarness(t, "")
		ctx, cancel := context.WithCancel(context.Background())
		c := h.start(t, "expenses", func(o *Options) { o.Context = ctx })
		h.backend.Next(t).RespondPage(12, testutil.Rows(1, 10, 1)...)
		waitFor(t, c, settled, "initial load")

		c.Refresh()
		h.backend.Next(t)
		cancel()

		v := waitFor(t, c, func(v View) bool { return !v.Loading }, "load never ended")
		assert.Equal(t, Cancelled, v.Status)
		assert.NoError(t, v.Err)
		assert.Len(t, v.Rows, 10, "previous rows stay displayed")
		assert.Empty(t, h.logger.Entries("error"))
	})

	t.Run("deadline", func(t *testing.T) {
		h := newHarness(t, "")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		c := h.start(t, "expenses", func(o *Options) { o.Context = ctx })
		h.backend.Next(t)

		v := waitFor(t, c, func(v View) bool { return !v.Loading }, "load never ended")
		assert.Equal(t, Failed, v.Status)
		require.Error(t, v.Err)
		assert.True(t, errors.Is(v.Err, context.DeadlineExceeded))
		assert.NotEmpty(t, h.logger.Entries("error"))
	})
}

func TestController_FilterChangeForgetsThePageCount(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(50, testutil.Rows(1, 10, 1)...)
	v := waitFor(t, c, settled, "initial load")
	require.Equal(t, 5, v.TotalPages)

	require.NoError(t, c.SetFilter("expense_search", "rare"))
	c.Flush()
	call := h.backend.Next(t)
	assert.Equal(t, "rare", call.Query("search"))

	assert.Zero(t, c.View().TotalPages)
	assert.False(t, c.SetPage(4), "the new query's page count is unknown")
	assert.False(t, c.NextPage())
	h.backend.Idle(t, 20*time.Millisecond)

	call.RespondPage(3, testutil.Rows(1, 3, 1)...)
	v = waitFor(t, c, settled, "filtered load")
	assert.Equal(t, Success, v.Status)
	assert.Equal(t, 1, v.TotalPages)
	assert.False(t, h.store.Read().Has("expenses_page"))

	// reloading the same query keeps its page count
	c.Refresh()
	h.backend.Next(t).RespondPage(3, testutil.Rows(1, 3, 1)...)
	assert.Equal(t, 1, c.View().TotalPages)
}

func TestController_SharedFieldReloadsEveryTable(t *testing.T) {
	h := newHarness(t, "year=1403&expenses_page=2&records_page=3")
	expenses := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(30)
	records := h.start(t, "records")
	h.backend.Next(t).RespondPage(30)
	waitFor(t, expenses, settled, "expenses")
	waitFor(t, records, settled, "records")

	require.NoError(t, expenses.SetFilter("year", "1402"))
	h.sched.Advance(debounce.DefaultDelay)

	got := map[string]*testutil.Call{}
	for i := 0; i < 2; i++ {
		call := h.backend.Next(t)
		got[call.Request.BaseURL] = call
	}
	for _, call := range got {
		assert.Equal(t, "1402", call.Query("year"))
		assert.Equal(t, "1", call.Query("page"))
	}
	assert.Len(t, got, 2)
	assert.Equal(t, dashboardURL+"?year=1402", h.store.URL())

	// a page-click on one table leaves the other alone
	for _, call := range got {
		call.RespondPage(30)
	}
	waitFor(t, expenses, settled, "expenses")
	waitFor(t, records, settled, "records")
	require.True(t, expenses.SetPage(2))
	assert.Contains(t, h.backend.Next(t).Request.BaseURL, "extra-expenses")
	h.backend.Idle(t, 20*time.Millisecond)
}

func TestController_HistoryNavigationReloads(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(30)
	waitFor(t, c, settled, "initial load")

	require.True(t, c.SetPage(3))
	h.backend.Next(t).RespondPage(30)
	waitFor(t, c, func(v View) bool { return settled(v) && v.Page == 3 }, "page 3")

	prev, ok := h.hist.Back()
	require.True(t, ok)
	require.NoError(t, h.store.Navigate(prev))
	assert.Equal(t, "1", h.backend.Next(t).Query("page"))
}

func TestController_Sort(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(0)

	require.NoError(t, c.Sort("amount"))
	assert.Equal(t, "amount", h.backend.Next(t).Query("ordering"))
	require.NoError(t, c.Sort("amount"))
	assert.Equal(t, "-amount", h.backend.Next(t).Query("ordering"))
	require.NoError(t, c.Sort("date"))
	assert.Equal(t, "date", h.store.Read().Get("expense_ordering"))
}

func TestController_UpdatesHoldTheLatestView(t *testing.T) {
	h := newHarness(t, "")
	c := h.start(t, "expenses")
	h.backend.Next(t).RespondPage(5, testutil.Rows(1, 5, 1)...)
	waitFor(t, c, settled, "initial load")

	v := <-c.Updates()
	assert.Equal(t, Success, v.Status)
	assert.Equal(t, c.View().Version, v.Version)

	select {
	case v := <-c.Updates():
		t.Fatalf("unexpected view %d", v.Version)
	default:
	}
}

func TestNew_ValidatesOptions(t *testing.T) {
	h := newHarness(t, "")

	_, err := New(Options{Resource: resource.Dashboard["expenses"], Fetcher: h.fetcher})
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "Store", vErr.Fields[0].Field)

	_, err = New(Options{Resource: resource.Resource{Key: "x"}, Store: h.store, Fetcher: h.fetcher})
	assert.Error(t, err)

	c, err := New(Options{Resource: resource.Dashboard["records"], Store: h.store, Fetcher: h.fetcher})
	require.NoError(t, err)
	v := c.View()
	assert.Equal(t, Idle, v.Status)
	assert.Equal(t, DefaultPageSize, v.PageSize)
	c.Close()
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "unknown", Status(42).String())
}
