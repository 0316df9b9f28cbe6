package querystate

import (
	"net/url"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type (
	// History receives every URL the store navigates to.
	// Implementations are called with the store locked and must not call back into it.
	History interface {
		Push(rawURL string)
		Replace(rawURL string)
	}

	// Listener is notified after the state changed.
	Listener func(prev, next State)

	// Store is the single shared mutable resource of a dashboard page: its URL query.
	// Writes are merges keyed by field name, so edits of unrelated fields never clobber each other.
	Store struct {
		mu        sync.Mutex
		base      url.URL
		state     State
		history   History
		listeners map[int]Listener
		resets    map[int]pageReset
		nextID    int
	}

	// pageReset removes page whenever a write changes one of fields without setting page itself.
	pageReset struct {
		page   string
		fields []string
	}
)

// NewStore creates a Store mounted on rawURL. The URL's query becomes the initial State.
// history may be nil.
func NewStore(rawURL string, history History) (*Store, error) {
	base, state, err := splitURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Store{
		base:      base,
		state:     state,
		history:   history,
		listeners: make(map[int]Listener),
		resets:    make(map[int]pageReset),
	}, nil
}

// Read returns the present fields among names, in the order of names.
// With no names, the whole state is returned.
func (s *Store) Read(names ...string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(names) == 0 {
		return s.state.Clone()
	}
	return s.state.Project(names...)
}

// Write merges partial into the URL and pushes a new history entry.
// An empty value removes the field; fields absent from partial are preserved.
func (s *Store) Write(partial State) {
	s.apply(func(st *State) { merge(st, partial) }, push)
}

// Replace is Write without a new history entry, used for edits that should not pile up in the history.
func (s *Store) Replace(partial State) {
	s.apply(func(st *State) { merge(st, partial) }, replace)
}

// Clear removes exactly the named fields, preserving others.
func (s *Store) Clear(names ...string) {
	s.apply(func(st *State) {
		for _, name := range names {
			st.Del(name)
		}
	}, push)
}

// Retain removes every field except the named ones, e.g. keeping `year` and `month` on a tab switch.
func (s *Store) Retain(names ...string) {
	s.apply(func(st *State) {
		keep := make(map[string]bool, len(names))
		for _, name := range names {
			keep[name] = true
		}
		for _, k := range st.Keys() {
			if !keep[k] {
				st.Del(k)
			}
		}
	}, push)
}

// Navigate replaces the whole state with the query of rawURL without touching the history,
// as happens on reload, back/forward or when a shared link is opened.
func (s *Store) Navigate(rawURL string) error {
	base, next, err := splitURL(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.state
	s.base = base
	s.state = next
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if !prev.Equal(next) {
		notify(listeners, prev, next)
	}
	return nil
}

// URL returns the current shareable URL.
func (s *Store) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlLocked()
}

// Subscribe registers l and returns a function removing it.
// Notifications run on the writer's goroutine and may interleave when writers race,
// so listeners should Read the store rather than rely on the order of notifications.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// ResetPageOn makes page default back to 1 (by removing it) whenever a Write, Replace, Clear or Retain
// changes any of fields while leaving page untouched. Navigate never resets pages: the URL is authoritative there.
func (s *Store) ResetPageOn(page string, fields ...string) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.resets[id] = pageReset{page: page, fields: append([]string(nil), fields...)}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.resets, id)
	}
}

type navMode int

const (
	push navMode = iota
	replace
)

func (s *Store) apply(mutate func(*State), mode navMode) {
	s.mu.Lock()
	prev := s.state
	next := prev.Clone()
	mutate(&next)
	for _, rule := range s.resets {
		rule.apply(prev, &next)
	}
	if prev.Equal(next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	if s.history != nil {
		if mode == replace {
			s.history.Replace(s.urlLocked())
		} else {
			s.history.Push(s.urlLocked())
		}
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, prev, next)
}

func (s *Store) urlLocked() string {
	u := s.base
	u.RawQuery = s.state.Encode()
	return u.String()
}

func (s *Store) snapshotListeners() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids) // subscription order
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	return ls
}

func notify(listeners []Listener, prev, next State) {
	for _, l := range listeners {
		l(prev.Clone(), next.Clone())
	}
}

func (r pageReset) apply(prev State, next *State) {
	if prev.Get(r.page) != next.Get(r.page) {
		return // page set explicitly
	}
	for _, f := range r.fields {
		if f != r.page && prev.Get(f) != next.Get(f) {
			next.Del(r.page)
			return
		}
	}
}

func merge(st *State, partial State) {
	for _, k := range partial.keys {
		if v := partial.vals[k]; v == "" {
			st.Del(k)
		} else {
			st.Set(k, v)
		}
	}
}

func splitURL(rawURL string) (url.URL, State, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return url.URL{}, State{}, errors.Wrapf(err, "parsing url %q", rawURL)
	}
	state, err := Parse(u.RawQuery)
	if err != nil {
		return url.URL{}, State{}, errors.Wrapf(err, "parsing query of %q", rawURL)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return *u, state, nil
}
