package querystate

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dashboardURL = "https://ushauri.test/accounting"

func newStore(t *testing.T, query string) (*Store, *MemoryHistory) {
	t.Helper()
	rawURL := dashboardURL
	if query != "" {
		rawURL += "?" + query
	}
	hist := NewMemoryHistory(rawURL)
	store, err := NewStore(rawURL, hist)
	require.NoError(t, err)
	return store, hist
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  State
	}{
		{"empty", "", State{}},
		{"keeps order", "year=1403&expense_search=x&month=7", New("year", "1403", "expense_search", "x", "month", "7")},
		{"drops empty values", "year=&month=7&expense_search", New("month", "7")},
		{"first duplicate wins", "month=7&month=8", New("month", "7")},
		{"unescapes", "expense_search=%D8%B9%D9%84%DB%8C+%D8%B1", New("expense_search", "علی ر")},
		{"leading question mark", "?month=7", New("month", "7")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.query)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
			assert.Equal(t, tt.want.Keys(), got.Keys())
		})
	}

	_, err := Parse("expense_search=%zz")
	assert.Error(t, err)
}

func TestState_Encode(t *testing.T) {
	st := New("year", "1403", "expense_search", "علی ر")
	assert.Equal(t, "year=1403&expense_search=%D8%B9%D9%84%DB%8C+%D8%B1", st.Encode())

	back, err := Parse(st.Encode())
	require.NoError(t, err)
	assert.True(t, st.Equal(back))
}

func TestState_SetDelKeepOrder(t *testing.T) {
	st := New("a", "1", "b", "2", "c", "3")
	st.Set("a", "9")
	st.Del("b")
	st.Set("d", "4")
	assert.Equal(t, []string{"a", "c", "d"}, st.Keys())
	assert.Equal(t, "9", st.Get("a"))
	assert.False(t, st.Has("b"))
}

func TestStore_Read(t *testing.T) {
	store, _ := newStore(t, "year=1403&month=7&expense_search=x")

	got := store.Read("expense_search", "expense_page", "year")
	assert.Equal(t, []string{"expense_search", "year"}, got.Keys())
	assert.Equal(t, 3, store.Read().Len())
}

func TestStore_WriteMergesAndPushes(t *testing.T) {
	store, hist := newStore(t, "year=1403&month=7")

	store.Write(New("expense_search", "x"))
	assert.Equal(t, dashboardURL+"?year=1403&month=7&expense_search=x", store.URL())
	assert.Equal(t, 2, hist.Len())
	assert.Equal(t, store.URL(), hist.Current())

	// empty value removes the field; unrelated fields are preserved
	store.Write(New("expense_search", "", "expense_category", "rent"))
	assert.Equal(t, dashboardURL+"?year=1403&month=7&expense_category=rent", store.URL())
	assert.False(t, store.Read().Has("expense_search"))

	// a write that changes nothing leaves no history entry
	store.Write(New("expense_category", "rent"))
	assert.Equal(t, 3, hist.Len())
}

func TestStore_ReplaceDoesNotPush(t *testing.T) {
	store, hist := newStore(t, "")
	store.Replace(New("expense_search", "ع"))
	store.Replace(New("expense_search", "علی"))
	assert.Equal(t, 1, hist.Len())
	assert.Equal(t, store.URL(), hist.Current())
}

func TestStore_ClearPreservesOthers(t *testing.T) {
	store, _ := newStore(t, "year=1403&month=7&expense_search=x&expense_page=3")
	store.Clear("expense_search", "expense_page", "not_there")
	assert.Equal(t, New("year", "1403", "month", "7"), store.Read())
}

func TestStore_Retain(t *testing.T) {
	store, _ := newStore(t, "year=1403&expense_search=x&month=7&student_page=2")
	store.Retain("year", "month")
	assert.Equal(t, dashboardURL+"?year=1403&month=7", store.URL())
}

func TestStore_Navigate(t *testing.T) {
	store, hist := newStore(t, "month=7")

	var calls int
	store.Subscribe(func(prev, next State) {
		calls++
		assert.Equal(t, "7", prev.Get("month"))
		assert.Equal(t, "8", next.Get("month"))
	})

	require.NoError(t, store.Navigate(dashboardURL+"?month=8"))
	require.NoError(t, store.Navigate(dashboardURL+"?month=8"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, hist.Len(), "navigation is not a new history entry")

	assert.Error(t, store.Navigate("http://[::1"))
}

func TestStore_Subscribe(t *testing.T) {
	store, _ := newStore(t, "")

	var got []string
	unsubscribe := store.Subscribe(func(_, next State) { got = append(got, next.Encode()) })
	store.Write(New("a", "1"))
	store.Write(New("a", "1")) // no change, no notification
	unsubscribe()
	store.Write(New("a", "2"))

	assert.Equal(t, []string{"a=1"}, got)
}

func TestStore_ResetPageOn(t *testing.T) {
	store, _ := newStore(t, "year=1403&expense_page=3&student_page=2")
	store.ResetPageOn("expense_page", "expense_search", "year", "expense_page")
	remove := store.ResetPageOn("student_page", "student_search", "year", "student_page")

	// an unrelated field keeps the page
	store.Write(New("student_search", "x"))
	assert.Equal(t, "3", store.Read().Get("expense_page"))
	assert.False(t, store.Read().Has("student_page"))

	// a page-click keeps the requested page
	store.Write(New("expense_page", "4"))
	assert.Equal(t, "4", store.Read().Get("expense_page"))

	// a shared field resets every table reading it
	store.Write(New("student_page", "2"))
	store.Write(New("year", "1402"))
	assert.False(t, store.Read().Has("expense_page"))
	assert.False(t, store.Read().Has("student_page"))

	remove()
	store.Write(New("student_page", "2"))
	store.Write(New("student_search", "y"))
	assert.Equal(t, "2", store.Read().Get("student_page"))

	// external navigation is authoritative
	require.NoError(t, store.Navigate(dashboardURL+"?year=1401&expense_page=5"))
	assert.Equal(t, "5", store.Read().Get("expense_page"))
}

func TestStore_ConcurrentWritesNeverClobber(t *testing.T) {
	store, _ := newStore(t, "")

	fields := []string{"advisor_search", "expense_search", "student_search", "record_search"}
	var wg sync.WaitGroup
	for _, field := range fields {
		field := field
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Replace(New(field, field))
			}
		}()
	}
	wg.Wait()

	st := store.Read()
	for _, field := range fields {
		assert.Equal(t, field, st.Get(field))
	}
}

func TestMemoryHistory(t *testing.T) {
	hist := NewMemoryHistory("/a")
	hist.Push("/b")
	hist.Push("/c")

	prev, ok := hist.Back()
	require.True(t, ok)
	assert.Equal(t, "/b", prev)

	hist.Push("/d") // drops the forward entry
	_, ok = hist.Forward()
	assert.False(t, ok)

	hist.Replace("/e")
	assert.Equal(t, "/e", hist.Current())
	assert.Equal(t, 3, hist.Len())
}
