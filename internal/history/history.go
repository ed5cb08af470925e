package history

import (
	"sync"
	"time"

	"pagebuilder/internal/domain"
)

// DefaultDepth bounds past and future combined.
const DefaultDepth = 50

// Entry is an immutable snapshot of a page's sections.
type Entry struct {
	Sections []domain.Section
	Action   string
	At       time.Time
}

// EntryInfo describes an entry without exposing its sections.
type EntryInfo struct {
	Action   string    `json:"action"`
	At       time.Time `json:"at"`
	Sections int       `json:"sections"`
	Current  bool      `json:"current"`
}

// History is a bounded snapshot stack. The top of past is always the
// current state, so undo is available only while past holds more than one
// entry. Every entry stored or returned is a deep copy.
type History struct {
	mu sync.Mutex

	past   []Entry // oldest first
	future []Entry // most recent undo last

	depth int
}

// New creates a history bounded to depth entries. depth <= 1 falls back to
// DefaultDepth.
func New(depth int) *History {
	if depth <= 1 {
		depth = DefaultDepth
	}
	return &History{depth: depth}
}

// Reset discards all entries and records baseline as the state that cannot
// be undone past.
func (h *History) Reset(baseline []domain.Section) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.future = nil
	h.past = []Entry{{
		Sections: domain.CloneSections(baseline),
		Action:   "open",
		At:       time.Now(),
	}}
}

// Record pushes a snapshot of the post-mutation tree and clears the redo
// stack.
func (h *History) Record(sections []domain.Section, action string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.future = nil
	h.past = append(h.past, Entry{
		Sections: domain.CloneSections(sections),
		Action:   action,
		At:       time.Now(),
	})

	if len(h.past) > h.depth {
		excess := len(h.past) - h.depth
		// Release evicted snapshots for the GC.
		for i := 0; i < excess; i++ {
			h.past[i] = Entry{}
		}
		h.past = h.past[excess:]
	}
}

// Undo moves the current state onto the redo stack and returns a copy of
// the state before it. ok is false when there is nothing to undo.
func (h *History) Undo() (sections []domain.Section, action string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.past) <= 1 {
		return nil, "", false
	}

	top := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, top)

	prev := h.past[len(h.past)-1]
	return cloneOrEmpty(prev.Sections), top.Action, true
}

// Redo re-applies the most recently undone state. ok is false when the redo
// stack is empty.
func (h *History) Redo() (sections []domain.Section, action string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.future) == 0 {
		return nil, "", false
	}

	next := h.future[len(h.future)-1]
	h.future[len(h.future)-1] = Entry{}
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, next)

	return cloneOrEmpty(next.Sections), next.Action, true
}

// CanUndo reports whether a state older than the baseline is recorded.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past) > 1
}

// CanRedo reports whether an undone state can be re-applied.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future) > 0
}

// Depth bounds the recorded states, baseline included.
func (h *History) Depth() int { return h.depth }

// PastLen counts the recorded states, baseline included.
func (h *History) PastLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past)
}

// FutureLen counts the states available to Redo.
func (h *History) FutureLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future)
}

// Current returns a copy of the snapshot at the top of past.
func (h *History) Current() ([]domain.Section, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.past) == 0 {
		return nil, false
	}
	return cloneOrEmpty(h.past[len(h.past)-1].Sections), true
}

// Entries lists past then future, oldest first, with the current state
// flagged.
func (h *History) Entries() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]EntryInfo, 0, len(h.past)+len(h.future))
	for i, e := range h.past {
		out = append(out, EntryInfo{
			Action:   e.Action,
			At:       e.At,
			Sections: len(e.Sections),
			Current:  i == len(h.past)-1,
		})
	}
	for i := len(h.future) - 1; i >= 0; i-- {
		e := h.future[i]
		out = append(out, EntryInfo{Action: e.Action, At: e.At, Sections: len(e.Sections)})
	}
	return out
}

func cloneOrEmpty(sections []domain.Section) []domain.Section {
	if sections == nil {
		return []domain.Section{}
	}
	return domain.CloneSections(sections)
}
