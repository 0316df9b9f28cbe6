// Package fetch issues paged-list requests, keeping at most one request per resource in flight.
package fetch

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/querystate"
)

// maxErrorBody bounds how much of an error response is kept for display.
const maxErrorBody = 512

type (
	// Doer sends REST requests. *rest.Client satisfies it.
	Doer interface {
		SendWithContext(ctx context.Context, request rest.Request) (*rest.Response, error)
	}

	// Request is one paged-list query. Resource is the logical key requests are deduplicated on.
	Request struct {
		Resource string
		Path     string
		Params   querystate.State
	}

	// ResultFunc receives the outcome of a request whose token was still active when it completed.
	ResultFunc func(tok *Token, batch RowBatch, err error)

	Options struct {
		BaseURL string
		Token   string
		Timeout time.Duration
		Client  Doer // defaults to a *rest.Client with Timeout
		Logger  core.Logger
	}

	// Fetcher is the CancellableFetcher: a new request for a resource cancels the one in flight.
	Fetcher struct {
		baseURL string
		token   string
		client  Doer
		logger  core.Logger

		mu     sync.Mutex
		active map[string]*Token
		closed bool
	}

	// Token identifies one in-flight request.
	Token struct {
		id        uuid.UUID
		req       Request
		issuedAt  time.Time
		cancel    context.CancelFunc
		cancelled atomic.Bool
		done      chan struct{}
	}
)

func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &rest.Client{HTTPClient: &http.Client{Timeout: opts.Timeout}}
	}
	return &Fetcher{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  client,
		logger:  opts.Logger,
		active:  make(map[string]*Token),
	}
}

// Fetch issues req, cancelling the request in flight for the same resource.
// handle runs on the request's goroutine unless the token was cancelled first, even when the transport
// ignored the cancellation. A Cancel racing with the response may still let handle run, so callers
// compare the token with the one they hold. When ctx itself ends, handle receives core.ErrCancelled
// or, for a deadline, a *core.RequestError wrapping context.DeadlineExceeded.
func (f *Fetcher) Fetch(ctx context.Context, req Request, handle ResultFunc) *Token {
	tctx, cancel := context.WithCancel(ctx)
	tok := &Token{
		id:       uuid.New(),
		req:      req,
		issuedAt: time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		tok.Cancel()
		close(tok.done)
		return tok
	}
	if prev, ok := f.active[req.Resource]; ok {
		prev.Cancel()
	}
	f.active[req.Resource] = tok
	f.mu.Unlock()

	go f.run(tctx, tok, handle)
	return tok
}

// Get performs req synchronously, outside of the one-request-per-resource bookkeeping.
func (f *Fetcher) Get(ctx context.Context, req Request) (RowBatch, error) {
	return f.do(ctx, req)
}

// Active returns the token in flight for resource, if any.
func (f *Fetcher) Active(resource string) (*Token, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.active[resource]
	return tok, ok
}

// Cancel cancels the request in flight for resource.
func (f *Fetcher) Cancel(resource string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok, ok := f.active[resource]; ok {
		tok.Cancel()
		delete(f.active, resource)
	}
}

// Close cancels every request in flight; later Fetch calls return cancelled tokens.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for resource, tok := range f.active {
		tok.Cancel()
		delete(f.active, resource)
	}
}

func (f *Fetcher) run(ctx context.Context, tok *Token, handle ResultFunc) {
	defer close(tok.done)
	defer tok.cancel()

	batch, err := f.do(ctx, tok.req)

	f.mu.Lock()
	if f.active[tok.req.Resource] == tok {
		delete(f.active, tok.req.Resource)
	}
	f.mu.Unlock()

	if tok.Cancelled() {
		f.debug("discarding cancelled request", tok)
		return
	}
	switch {
	case core.IsCancelled(err):
		f.debug("request context cancelled", tok)
	case err != nil && f.logger != nil:
		f.logger.Error("paged-list request failed", err, map[string]interface{}{
			"resource": tok.req.Resource,
			"token":    tok.ID(),
			"query":    tok.req.Params.Encode(),
		})
	}
	if handle != nil && !tok.Cancelled() {
		handle(tok, batch, err)
	}
}

func (f *Fetcher) do(ctx context.Context, req Request) (RowBatch, error) {
	headers := map[string]string{"Accept": "application/json"}
	if f.token != "" {
		headers["Authorization"] = "Bearer " + f.token
	}
	resp, err := f.client.SendWithContext(ctx, rest.Request{
		Method:      rest.Get,
		BaseURL:     f.baseURL + req.Path,
		Headers:     headers,
		QueryParams: req.Params.Map(),
	})
	if err != nil {
		switch ctx.Err() {
		case nil:
		case context.DeadlineExceeded:
			return RowBatch{}, core.NewRequestError(req.Resource, 0, "", errors.Wrap(ctx.Err(), "sending request"))
		default:
			return RowBatch{}, core.ErrCancelled
		}
		return RowBatch{}, core.NewRequestError(req.Resource, 0, "", errors.Wrap(err, "sending request"))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return RowBatch{}, core.NewRequestError(req.Resource, resp.StatusCode, truncate(resp.Body, maxErrorBody), nil)
	}

	batch, err := decodeBatch([]byte(resp.Body))
	if err != nil {
		return RowBatch{}, core.NewRequestError(req.Resource, resp.StatusCode, truncate(resp.Body, maxErrorBody), err)
	}
	return batch, nil
}

func (f *Fetcher) debug(msg string, tok *Token) {
	if f.logger == nil {
		return
	}
	f.logger.Debug(msg, map[string]interface{}{
		"resource": tok.req.Resource,
		"token":    tok.ID(),
		"elapsed":  time.Since(tok.issuedAt).String(),
	})
}

// ID returns the token's unique id.
func (t *Token) ID() string {
	return t.id.String()
}

// Request returns the query the token was issued for.
func (t *Token) Request() Request {
	return t.req
}

// Cancel signals the transport to abort; the token's result will be ignored.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed once the request finished, successfully or not.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
