package complexity

import (
	"sync"
	"time"

	"github.com/nimbusai/querycore/pkg/module"
)

// historyEntry records a prior classification for a query digest.
type historyEntry struct {
	digest string
	tier   module.Complexity
	at     time.Time
	prev   *historyEntry
	next   *historyEntry
}

// history is a bounded insertion-ordered cache keyed by digest, modeled on
// the teacher routing package's doubly-linked-list LRU cache but with
// bulk oldest-100 eviction on overflow, per the spec's "max_history" rule
// rather than one-at-a-time LRU eviction.
type history struct {
	mu       sync.Mutex
	items    map[string]*historyEntry
	head     *historyEntry // most recently inserted
	tail     *historyEntry // oldest
	maxItems int
}

func newHistory(maxItems int) *history {
	if maxItems <= 0 {
		maxItems = 10000
	}
	return &history{
		items:    make(map[string]*historyEntry),
		maxItems: maxItems,
	}
}

func (h *history) get(digest string) (historyEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.items[digest]
	if !ok {
		return historyEntry{}, false
	}
	return *e, true
}

func (h *history) put(digest string, tier module.Complexity, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.items[digest]; ok {
		existing.tier = tier
		existing.at = at
		h.moveToFront(existing)
		return
	}

	e := &historyEntry{digest: digest, tier: tier, at: at}
	h.items[digest] = e
	h.addToFront(e)

	if len(h.items) > h.maxItems {
		h.evictOldest(100)
	}
}

func (h *history) addToFront(e *historyEntry) {
	e.prev = nil
	e.next = h.head
	if h.head != nil {
		h.head.prev = e
	}
	h.head = e
	if h.tail == nil {
		h.tail = e
	}
}

func (h *history) removeFromList(e *historyEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		h.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		h.tail = e.prev
	}
}

func (h *history) moveToFront(e *historyEntry) {
	if e == h.head {
		return
	}
	h.removeFromList(e)
	h.addToFront(e)
}

// evictOldest removes up to n entries from the tail (oldest) end.
func (h *history) evictOldest(n int) {
	for i := 0; i < n && h.tail != nil; i++ {
		victim := h.tail
		h.removeFromList(victim)
		delete(h.items, victim.digest)
	}
}
