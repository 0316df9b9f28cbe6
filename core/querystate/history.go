package querystate

import "sync"

// MemoryHistory is an in-process navigation history, the stand-in for a browser's.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []string
	idx     int
}

var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory returns a history whose first entry is rawURL.
func NewMemoryHistory(rawURL string) *MemoryHistory {
	return &MemoryHistory{entries: []string{rawURL}}
}

// Push drops any forward entries and appends rawURL.
func (h *MemoryHistory) Push(rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		h.entries = append(h.entries, rawURL)
		return
	}
	h.entries = append(h.entries[:h.idx+1], rawURL)
	h.idx = len(h.entries) - 1
}

func (h *MemoryHistory) Replace(rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		h.entries = append(h.entries, rawURL)
		return
	}
	h.entries[h.idx] = rawURL
}

// Back moves one entry back and returns it. Pass the result to Store.Navigate.
func (h *MemoryHistory) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.idx == 0 {
		return "", false
	}
	h.idx--
	return h.entries[h.idx], true
}

// Forward moves one entry forward and returns it.
func (h *MemoryHistory) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.idx >= len(h.entries)-1 {
		return "", false
	}
	h.idx++
	return h.entries[h.idx], true
}

// Current returns the entry the history points at.
func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[h.idx]
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
