package shell

import "sync"

// DefaultHistoryLimit bounds how many invocations History retains.
const DefaultHistoryLimit = 1000

// History records invocation text for pipelines built with the history flag.
// Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []string
	limit   int
}

// NewHistory creates a History holding up to DefaultHistoryLimit entries.
func NewHistory() *History {
	return &History{limit: DefaultHistoryLimit}
}

// Add appends text, evicting the oldest entry past the limit. Empty text is
// not recorded.
func (h *History) Add(text string) {
	if text == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, text)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Entries returns a copy of the recorded history, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
