package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/rest"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/debounce"
)

// =========================================================================
// Scheduler

// Scheduler is a debounce.Scheduler driven by Advance instead of the clock.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*Timer
}

var _ debounce.Scheduler = (*Scheduler)(nil)

func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)}
}

type Timer struct {
	s       *Scheduler
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) debounce.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Timer{s: s, at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the clock forward by d and runs every timer that became due, in deadline order,
// on the calling goroutine.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due, remaining []*Timer
	for _, t := range s.timers {
		switch {
		case t.stopped:
		case !t.at.After(s.now):
			t.fired = true
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	s.timers = remaining
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers that neither fired nor were stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *Timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// =========================================================================
// Logger

type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records every entry it is given.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Entries returns the recorded entries of level, or all of them when level is empty.
func (l *Logger) Entries(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// =========================================================================
// Backend

// Backend is a REST client whose requests stay in flight until the test answers them.
type Backend struct {
	// IgnoreCancel makes requests wait for their answer even once their context is done,
	// like a transport that does not support cancellation.
	IgnoreCancel bool

	calls chan *Call
}

type Call struct {
	Request rest.Request
	reply   chan reply
}

type reply struct {
	resp *rest.Response
	err  error
}

func NewBackend() *Backend {
	return &Backend{calls: make(chan *Call, 64)}
}

func (b *Backend) SendWithContext(ctx context.Context, req rest.Request) (*rest.Response, error) {
	call := &Call{Request: req, reply: make(chan reply, 1)}
	b.calls <- call

	if b.IgnoreCancel {
		r := <-call.reply
		return r.resp, r.err
	}
	select {
	case r := <-call.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next returns the next request sent, failing the test if none arrives in time.
func (b *Backend) Next(t *testing.T) *Call {
	t.Helper()
	select {
	case call := <-b.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no request was sent")
		return nil
	}
}

// Idle fails the test if a request is sent within d.
func (b *Backend) Idle(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case call := <-b.calls:
		t.Fatalf("unexpected request %s?%v", call.Request.BaseURL, call.Request.QueryParams)
	case <-time.After(d):
	}
}

func (c *Call) Query(name string) string {
	return c.Request.QueryParams[name]
}

// URL returns the request's URL with its query encoded.
func (c *Call) URL() string {
	q := make(url.Values, len(c.Request.QueryParams))
	for k, v := range c.Request.QueryParams {
		q.Set(k, v)
	}
	return c.Request.BaseURL + "?" + q.Encode()
}

func (c *Call) Respond(status int, body string) {
	c.reply <- reply{resp: &rest.Response{StatusCode: status, Body: body}}
}

// RespondPage answers with a `{count, results}` page.
func (c *Call) RespondPage(count int, rows ...map[string]interface{}) {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"count": count, "results": rows})
	if err != nil {
		panic(fmt.Sprintf("marshalling page: %v", err))
	}
	c.Respond(http.StatusOK, string(body))
}

func (c *Call) Fail(err error) {
	c.reply <- reply{err: err}
}

// Rows builds n rows numbered from first, each with an id and an amount.
func Rows(first, n int, amount interface{}) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{"id": first + i, "amount": amount}
	}
	return rows
}
