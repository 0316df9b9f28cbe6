// Package querystate keeps named filter and pagination fields in sync with a shareable URL.
package querystate

import (
	"net/url"
	"sort"
	"strings"
)

// State is an ordered mapping of field name to value. The zero value is an empty State.
// A State read from a Store never holds empty values; in a partial State passed to
// Store.Write an empty value means "remove this field".
type State struct {
	keys []string
	vals map[string]string
}

// New builds a State from name/value pairs: New("page", "2", "search", "x").
// A trailing name without a value is ignored.
func New(pairs ...string) State {
	var s State
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

// FromValues builds a State from url.Values, keeping the first value of each key in sorted key order.
func FromValues(vals url.Values) State {
	var s State
	for _, k := range sortedKeys(vals) {
		if v := vals.Get(k); v != "" {
			s.Set(k, v)
		}
	}
	return s
}

// Parse builds a State from a raw query string, keeping the order in which fields appear.
func Parse(rawQuery string) (State, error) {
	var s State
	for _, part := range strings.Split(strings.TrimPrefix(rawQuery, "?"), "&") {
		if part == "" {
			continue
		}
		k, v := part, ""
		if i := strings.IndexByte(part, '='); i >= 0 {
			k, v = part[:i], part[i+1:]
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			return State{}, err
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return State{}, err
		}
		if key == "" || val == "" || s.Has(key) {
			continue
		}
		s.Set(key, val)
	}
	return s, nil
}

// Set adds or updates a field. Updating keeps the field's original position.
func (s *State) Set(name, value string) {
	if s.vals == nil {
		s.vals = make(map[string]string)
	}
	if _, ok := s.vals[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.vals[name] = value
}

// Del removes a field.
func (s *State) Del(name string) {
	if _, ok := s.vals[name]; !ok {
		return
	}
	delete(s.vals, name)
	for i, k := range s.keys {
		if k == name {
			s.keys = append(s.keys[:i:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s State) Get(name string) string {
	return s.vals[name]
}

func (s State) Lookup(name string) (string, bool) {
	v, ok := s.vals[name]
	return v, ok
}

func (s State) Has(name string) bool {
	_, ok := s.vals[name]
	return ok
}

func (s State) Len() int {
	return len(s.keys)
}

// Keys returns the field names in order.
func (s State) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Map returns a copy of the fields as a plain map.
func (s State) Map() map[string]string {
	m := make(map[string]string, len(s.keys))
	for _, k := range s.keys {
		m[k] = s.vals[k]
	}
	return m
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	var c State
	for _, k := range s.keys {
		c.Set(k, s.vals[k])
	}
	return c
}

// Project returns the subset of s holding the given fields, in the order of names.
func (s State) Project(names ...string) State {
	var p State
	for _, name := range names {
		if v, ok := s.vals[name]; ok && v != "" {
			p.Set(name, v)
		}
	}
	return p
}

// Equal reports whether both states hold the same fields with the same values, ignoring order.
func (s State) Equal(o State) bool {
	if len(s.keys) != len(o.keys) {
		return false
	}
	for k, v := range s.vals {
		if ov, ok := o.vals[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Encode renders the state as a query string, keeping field order.
func (s State) Encode() string {
	var b strings.Builder
	for _, k := range s.keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(s.vals[k]))
	}
	return b.String()
}

func (s State) String() string {
	return s.Encode()
}

func sortedKeys(vals url.Values) []string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
