package services

import "sync"

const maxHistory = 50

// HistoryEntry is one step of the navigation history
type HistoryEntry struct {
	View      View
	Query     string
	MessageID string
}

// History is a bounded stack of visited views
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{}
}

// Push records e unless it repeats the current entry
func (h *History) Push(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1] == e {
		return
	}
	h.entries = append(h.entries, e)
	if len(h.entries) > maxHistory {
		h.entries = append([]HistoryEntry(nil), h.entries[len(h.entries)-maxHistory:]...)
	}
}

// Back drops the current entry and returns the one before it
func (h *History) Back() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return HistoryEntry{}, false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// Current returns the newest entry
func (h *History) Current() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Reset forgets every entry
func (h *History) Reset() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}

// Len returns the number of entries
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
