package distribution

// Entry is one day's distribution outcome.
type Entry struct {
	// Multiplier is 1 + that day's interest rate.
	Multiplier float64
	// UBIPerHead is the UBI paid to each verified human that day.
	UBIPerHead uint64
}

// IdentityEntry is the entry for a day on which nothing was distributed.
var IdentityEntry = Entry{Multiplier: 1}

// History is a fixed ring of the last HistorySize entries. Inserting always
// overwrites the oldest slot, so the ring never grows or shrinks.
type History struct {
	entries [HistorySize]Entry
	oldest  int
}

// NewHistory returns a ring pre-filled with identity entries.
func NewHistory() *History {
	h := &History{}
	for i := range h.entries {
		h.entries[i] = IdentityEntry
	}
	return h
}

// Insert records the newest day.
func (h *History) Insert(e Entry) {
	h.entries[h.oldest] = e
	h.oldest = (h.oldest + 1) % HistorySize
}

// OldestIndex returns the insertion cursor.
func (h *History) OldestIndex() int {
	return h.oldest
}

// Newest returns the most recently inserted entry.
func (h *History) Newest() Entry {
	return h.entries[(h.oldest+HistorySize-1)%HistorySize]
}

// FoldRecent calls fn on the n most recent entries, oldest first. n is
// clamped to [0, HistorySize].
func (h *History) FoldRecent(n int, fn func(Entry)) {
	if n > HistorySize {
		n = HistorySize
	}
	for i := n - 1; i >= 0; i-- {
		fn(h.entries[(h.oldest+HistorySize-1-i)%HistorySize])
	}
}

// Entries returns every entry, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, 0, HistorySize)
	h.FoldRecent(HistorySize, func(e Entry) {
		out = append(out, e)
	})
	return out
}
