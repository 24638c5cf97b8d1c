package discovery

import (
	"strings"
	"sync"
	"time"

	"screenscape/discoveryservice/internal/domain"
)

const defaultHistoryMaxEntries = 8

// History keeps the most recent successful queries, newest first, with
// case-insensitive de-duplication.
type History struct {
	mu         sync.Mutex
	entries    []domain.HistoryEntry
	maxEntries int
	now        func() time.Time
}

func NewHistory(maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = defaultHistoryMaxEntries
	}
	return &History{
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (h *History) Add(query string) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries := make([]domain.HistoryEntry, 0, h.maxEntries)
	entries = append(entries, domain.HistoryEntry{Query: trimmed, SearchedAt: h.now()})
	for _, entry := range h.entries {
		if strings.EqualFold(entry.Query, trimmed) {
			continue
		}
		if len(entries) == h.maxEntries {
			break
		}
		entries = append(entries, entry)
	}
	h.entries = entries
}

func (h *History) Entries() []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryEntry{}, h.entries...)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
